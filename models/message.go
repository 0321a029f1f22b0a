package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageKind tags the payload carried by a message
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindPhoto    MessageKind = "photo"
	KindVoice    MessageKind = "voice"
	KindVideo    MessageKind = "video"
	KindDocument MessageKind = "document"
)

// ParseMessageKind converts a wire value into a MessageKind
func ParseMessageKind(s string) (MessageKind, error) {
	switch k := MessageKind(s); k {
	case KindText, KindPhoto, KindVoice, KindVideo, KindDocument:
		return k, nil
	}
	return "", fmt.Errorf("unknown message kind %q", s)
}

// HasMedia reports whether the kind carries a media reference
func (k MessageKind) HasMedia() bool {
	switch k {
	case KindText:
		return false
	case KindPhoto, KindVoice, KindVideo, KindDocument:
		return true
	}
	return false
}

// AcceptsCaption reports whether text may accompany the media. Voice notes
// are relayed without a caption.
func (k MessageKind) AcceptsCaption() bool {
	switch k {
	case KindText, KindPhoto, KindVideo, KindDocument:
		return true
	case KindVoice:
		return false
	}
	return false
}

// Message holds the structure for the messages collection in mongo
type Message struct {
	ID        primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	SessionID int64              `json:"sessionId" bson:"sessionId"`
	Seq       int64              `json:"seq" bson:"seq"`
	SenderID  string             `json:"senderId" bson:"senderId"`
	Kind      MessageKind        `json:"kind" bson:"kind"`
	Text      *string            `json:"text,omitempty" bson:"text,omitempty"`
	MediaRef  *string            `json:"mediaRef,omitempty" bson:"mediaRef,omitempty"`
	SentAt    time.Time          `json:"sentAt" bson:"sentAt"`
}

// Content is the payload of a message before it is recorded
type Content struct {
	Kind     MessageKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	MediaRef string      `json:"mediaRef,omitempty"`
}

// Validate checks that the media reference is present iff the kind needs one
func (c Content) Validate() error {
	if _, err := ParseMessageKind(string(c.Kind)); err != nil {
		return err
	}
	if c.Kind.HasMedia() && c.MediaRef == "" {
		return fmt.Errorf("%s message requires a media reference", c.Kind)
	}
	if !c.Kind.HasMedia() && c.Text == "" {
		return fmt.Errorf("text message requires content")
	}
	return nil
}

// ToMessage builds the record stored for this content
func (c Content) ToMessage(sessionID int64, senderID string, sentAt time.Time) Message {
	m := Message{
		SessionID: sessionID,
		SenderID:  senderID,
		Kind:      c.Kind,
		SentAt:    sentAt,
	}
	if c.Text != "" && c.Kind.AcceptsCaption() {
		text := c.Text
		m.Text = &text
	}
	if c.Kind.HasMedia() {
		ref := c.MediaRef
		m.MediaRef = &ref
	}
	return m
}

// Content returns the payload of a recorded message
func (m Message) Content() Content {
	c := Content{Kind: m.Kind}
	if m.Text != nil {
		c.Text = *m.Text
	}
	if m.MediaRef != nil {
		c.MediaRef = *m.MediaRef
	}
	return c
}
