package identity

import (
	"context"
	"errors"

	"github.com/linesmerrill/counsel-relay-api/models"
)

// ErrConflict is returned by Store.Insert when the real id or the handle is
// already taken
var ErrConflict = errors.New("identity conflict")

// Store persists party identities. Lookups return models.ErrNotFound when
// nothing matches; updates on an unknown real id do the same.
type Store interface {
	FindByRealID(ctx context.Context, realID string) (*models.PartyIdentity, error)
	FindByHandle(ctx context.Context, handle string) (*models.PartyIdentity, error)
	Insert(ctx context.Context, identity models.PartyIdentity) error
	SetBlocked(ctx context.Context, realID string, blocked bool) error
	SetState(ctx context.Context, realID string, state models.ConversationState) error
	SetLanguage(ctx context.Context, realID, language string) error
	CountBlocked(ctx context.Context) (int64, error)
}
