package models

import "time"

// SchedulerLock holds the structure for the scheduler_locks collection in mongo
type SchedulerLock struct {
	ID         string    `bson:"_id"`
	InstanceID string    `bson:"instanceId"`
	ExpiresAt  time.Time `bson:"expiresAt"`
}
