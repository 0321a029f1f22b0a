package models

import "time"

// Counselor holds the structure for the counselors collection in mongo
type Counselor struct {
	ID          string    `json:"id" bson:"_id"`
	Categories  []string  `json:"categories" bson:"categories"`
	Active      bool      `json:"active" bson:"active"`
	// ReplyTarget is the session the counselor is currently composing replies
	// for; zero when no reply is in progress.
	ReplyTarget int64     `json:"replyTarget,omitempty" bson:"replyTarget,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// HasCategory reports whether the counselor handles the category tag
func (c Counselor) HasCategory(category string) bool {
	for _, tag := range c.Categories {
		if tag == category {
			return true
		}
	}
	return false
}
