package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PartyIdentity holds the structure for the identities collection in mongo.
// RealID is the transport-issued party identifier and is never shown to a
// counselor; Handle is the anonymous name used everywhere else.
type PartyIdentity struct {
	ID        primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	RealID    string             `json:"realId" bson:"realId"`
	Handle    string             `json:"handle" bson:"handle"`
	Blocked   bool               `json:"blocked" bson:"blocked"`
	State     ConversationState  `json:"state" bson:"state"`
	Language  string             `json:"language,omitempty" bson:"language,omitempty"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ConversationState is the per-user position in the conversation flow
type ConversationState string

const (
	// StateIdle is the state of a never-seen identity
	StateIdle ConversationState = "idle"
	// StateSelectingCategory is the menu state, also the resting state after a session
	StateSelectingCategory ConversationState = "selecting_category"
	// StateInChat means the user has an active session
	StateInChat ConversationState = "in_chat"
)
