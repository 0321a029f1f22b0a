package models

import "time"

// SessionStatus is the lifecycle status of a chat session
type SessionStatus string

const (
	// SessionActive sessions relay messages
	SessionActive SessionStatus = "active"
	// SessionFinished is terminal
	SessionFinished SessionStatus = "finished"
)

// ChatSession holds the structure for the chat_sessions collection in mongo
type ChatSession struct {
	ID           int64         `json:"sessionId" bson:"_id"`
	UserID       string        `json:"userId" bson:"userId"`
	CounselorID  string        `json:"counselorId" bson:"counselorId"`
	Category     string        `json:"category" bson:"category"`
	Status       SessionStatus `json:"status" bson:"status"`
	MessageCount int64         `json:"messageCount" bson:"messageCount"`
	CreatedAt    time.Time     `json:"createdAt" bson:"createdAt"`
	FinishedAt   *time.Time    `json:"finishedAt,omitempty" bson:"finishedAt,omitempty"`
}

// IsActive reports whether messages may still be appended
func (s ChatSession) IsActive() bool {
	return s.Status == SessionActive
}

// Counterpart returns the other participant of the session, or "" if
// partyID does not take part in it.
func (s ChatSession) Counterpart(partyID string) string {
	switch partyID {
	case s.UserID:
		return s.CounselorID
	case s.CounselorID:
		return s.UserID
	}
	return ""
}
