// Package sessions owns chat sessions and their message records.
package sessions

import (
	"context"

	"github.com/linesmerrill/counsel-relay-api/models"
)

// DefaultExportLimit bounds ListFinished when the caller passes no limit
const DefaultExportLimit = 100

// Store is the session store. Implementations enforce at most one active
// session per user in a single conditional write, and finish sessions with a
// compare-and-swap on status.
type Store interface {
	// Create fails with models.ErrDuplicateActiveSession when userID already
	// has an active session.
	Create(ctx context.Context, userID, counselorID, category string) (*models.ChatSession, error)
	Get(ctx context.Context, id int64) (*models.ChatSession, error)
	GetActiveForUser(ctx context.Context, userID string) (*models.ChatSession, error)
	GetActiveForCounselor(ctx context.Context, counselorID string) ([]models.ChatSession, error)
	// Finish moves an active session to finished. A second call reports
	// models.ErrAlreadyFinished.
	Finish(ctx context.Context, id int64) (*models.ChatSession, error)
	// AppendMessage records content from senderID, who must take part in the
	// session. Non-active sessions are rejected with models.ErrSessionNotActive.
	AppendMessage(ctx context.Context, sessionID int64, senderID string, content models.Content) (*models.Message, error)
	ListMessages(ctx context.Context, sessionID int64) ([]models.Message, error)
	// CountActiveByCounselor returns the live number of active sessions per
	// counselor in category. Counselors without one are absent.
	CountActiveByCounselor(ctx context.Context, category string) (map[string]int, error)
	ListActive(ctx context.Context) ([]models.ChatSession, error)
	// ListFinished returns finished sessions, most recently finished first
	ListFinished(ctx context.Context, limit int) ([]models.ChatSession, error)
	CountByStatus(ctx context.Context, status models.SessionStatus) (int64, error)
}
