// Package relay forwards messages between the two participants of a session
// without disclosing either real identity.
package relay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/models"
)

// Sender is implemented by the transport adapter. A failed send is an
// observed result and must be returned, never panicked.
type Sender interface {
	Send(ctx context.Context, partyID string, msg models.Outbound) error
}

// Recorder persists messages before they are forwarded
type Recorder interface {
	AppendMessage(ctx context.Context, sessionID int64, senderID string, content models.Content) (*models.Message, error)
}

// Direction of a relayed message
type Direction int

const (
	// ToCounselor messages are attributed with the user's anonymous handle
	ToCounselor Direction = iota
	// ToUser messages carry a neutral attribution; the counselor is never
	// identified to the user
	ToUser
)

// Attribution is what the recipient learns about the sender
type Attribution struct {
	Direction Direction
	// Handle is the user's anonymous handle, set only for ToCounselor
	Handle string
}

// Formatter renders relayed content for a recipient
type Formatter interface {
	Format(ctx context.Context, recipientID string, from Attribution, content models.Content) models.Outbound
}

// Relay persists then delivers
type Relay struct {
	recorder  Recorder
	sender    Sender
	formatter Formatter
}

// New returns a relay
func New(recorder Recorder, sender Sender, formatter Formatter) *Relay {
	return &Relay{recorder: recorder, sender: sender, formatter: formatter}
}

// Forward records content from senderID in session and delivers it to the
// counterpart. userHandle is the anonymous handle of the session's user.
// The record is kept even when delivery fails; that case returns the stored
// message together with an error wrapping models.ErrDeliveryFailed.
func (r *Relay) Forward(ctx context.Context, session models.ChatSession, senderID, userHandle string, content models.Content) (*models.Message, error) {
	recipient := session.Counterpart(senderID)
	if recipient == "" {
		return nil, fmt.Errorf("sender %s is not part of session %d", senderID, session.ID)
	}

	msg, err := r.recorder.AppendMessage(ctx, session.ID, senderID, content)
	if err != nil {
		return nil, err
	}

	from := Attribution{Direction: ToUser}
	if senderID == session.UserID {
		from = Attribution{Direction: ToCounselor, Handle: userHandle}
	}
	out := r.formatter.Format(ctx, recipient, from, msg.Content())

	if err := r.sender.Send(ctx, recipient, out); err != nil {
		zap.S().Warnw("relay delivery failed",
			"sessionId", session.ID,
			"seq", msg.Seq,
			"kind", msg.Kind,
			"error", err)
		return msg, fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}
	return msg, nil
}
