package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/conversation"
	"github.com/linesmerrill/counsel-relay-api/models"
)

// Stats is the administrator overview
type Stats struct {
	Counselors       int   `json:"counselors"`
	ActiveSessions   int64 `json:"activeSessions"`
	FinishedSessions int64 `json:"finishedSessions"`
	BlockedUsers     int64 `json:"blockedUsers"`
}

// SessionSummary is an active session as shown to administrators
type SessionSummary struct {
	SessionID   int64  `json:"sessionId"`
	Handle      string `json:"handle"`
	CounselorID string `json:"counselorId"`
	Category    string `json:"category"`
}

// RegisterCounselor adds or updates a counselor. Every category must exist
// in the taxonomy.
func (c *Core) RegisterCounselor(ctx context.Context, id string, categories []string) (*models.Counselor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("counselor id is required")
	}
	for _, category := range categories {
		if !c.taxonomy.HasCategory(category) {
			return nil, fmt.Errorf("unknown category %q", category)
		}
	}
	counselor, err := c.directory.Register(ctx, id, categories)
	if err != nil {
		return nil, err
	}
	zap.S().Infow("counselor registered", "categories", counselor.Categories)
	return counselor, nil
}

// RemoveCounselor deregisters a counselor. Sessions already assigned to them
// keep running until finished.
func (c *Core) RemoveCounselor(ctx context.Context, id string) error {
	return c.directory.Deregister(ctx, id)
}

// ListCounselors returns every registered counselor
func (c *Core) ListCounselors(ctx context.Context) ([]models.Counselor, error) {
	return c.directory.List(ctx)
}

// SetCounselorActive marks a counselor as taking or not taking new sessions
func (c *Core) SetCounselorActive(ctx context.Context, id string, active bool) error {
	return c.directory.SetActive(ctx, id, active)
}

// Block bars realID from the service and closes their active session
func (c *Core) Block(ctx context.Context, realID string) error {
	if err := c.identities.SetBlocked(ctx, realID, true); err != nil {
		return err
	}
	if _, err := c.ForceFinishForUser(ctx, realID); err != nil && !errors.Is(err, models.ErrNotFound) && !errors.Is(err, models.ErrAlreadyFinished) {
		return err
	}
	zap.S().Infow("identity blocked", "handle", c.handleOf(ctx, realID))
	return nil
}

// Unblock lifts a block
func (c *Core) Unblock(ctx context.Context, realID string) error {
	return c.identities.SetBlocked(ctx, realID, false)
}

// ForceFinishForUser ends the active session of a user on behalf of an
// administrator. It returns models.ErrNotFound when there is none.
func (c *Core) ForceFinishForUser(ctx context.Context, userID string) (*models.ChatSession, error) {
	s, err := c.sessions.GetActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.endSession(ctx, *s, conversation.ByAdmin)
}

// ForceFinish ends a session by id on behalf of an administrator
func (c *Core) ForceFinish(ctx context.Context, sessionID int64) (*models.ChatSession, error) {
	s, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.IsActive() {
		return nil, models.ErrAlreadyFinished
	}
	return c.endSession(ctx, *s, conversation.ByAdmin)
}

// Lookup maps an anonymous handle back to the real id
func (c *Core) Lookup(ctx context.Context, handle string) (string, error) {
	realID, err := c.identities.ReverseLookup(ctx, handle)
	if err != nil {
		return "", err
	}
	zap.S().Infow("handle looked up by administrator", "handle", handle)
	return realID, nil
}

// ActiveSessions summarises every active session
func (c *Core) ActiveSessions(ctx context.Context) ([]SessionSummary, error) {
	active, err := c.sessions.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(active))
	for _, s := range active {
		out = append(out, SessionSummary{
			SessionID:   s.ID,
			Handle:      c.handleOf(ctx, s.UserID),
			CounselorID: s.CounselorID,
			Category:    s.Category,
		})
	}
	return out, nil
}

// Stats returns counts for the administrator overview
func (c *Core) Stats(ctx context.Context) (*Stats, error) {
	counselors, err := c.directory.List(ctx)
	if err != nil {
		return nil, err
	}
	active, err := c.sessions.CountByStatus(ctx, models.SessionActive)
	if err != nil {
		return nil, err
	}
	finished, err := c.sessions.CountByStatus(ctx, models.SessionFinished)
	if err != nil {
		return nil, err
	}
	blocked, err := c.identities.CountBlocked(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Counselors:       len(counselors),
		ActiveSessions:   active,
		FinishedSessions: finished,
		BlockedUsers:     blocked,
	}, nil
}
