package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/models"
)

// Registry maps transport party ids to stable anonymous handles
type Registry struct {
	store       Store
	handles     *HandleGenerator
	maxAttempts int

	// Now is the clock used for record timestamps
	Now func() time.Time
}

// NewRegistry returns a registry over store. maxAttempts caps how many
// handle candidates are tried for one new identity.
func NewRegistry(store Store, handles *HandleGenerator, maxAttempts int) *Registry {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Registry{
		store:       store,
		handles:     handles,
		maxAttempts: maxAttempts,
		Now:         time.Now,
	}
}

// ResolveOrCreate returns the anonymous handle for realID, creating the
// mapping on first contact
func (r *Registry) ResolveOrCreate(ctx context.Context, realID string) (string, error) {
	identity, err := r.Resolve(ctx, realID)
	if err != nil {
		return "", err
	}
	return identity.Handle, nil
}

// Resolve is ResolveOrCreate returning the whole identity record. A racing
// first contact for the same realID loses on the store's uniqueness
// constraint and re-reads the winner's row.
func (r *Registry) Resolve(ctx context.Context, realID string) (*models.PartyIdentity, error) {
	if realID == "" {
		return nil, fmt.Errorf("empty party id")
	}
	identity, err := r.store.FindByRealID(ctx, realID)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		handle := r.handles.Next()
		if _, err := r.store.FindByHandle(ctx, handle); err == nil {
			continue
		} else if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}

		now := r.Now().UTC()
		candidate := models.PartyIdentity{
			RealID:    realID,
			Handle:    handle,
			State:     models.StateIdle,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := r.store.Insert(ctx, candidate)
		if err == nil {
			zap.S().Debugw("created identity", "handle", handle)
			return &candidate, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		// either another worker created realID first or the handle was
		// taken between the check and the insert
		if winner, err := r.store.FindByRealID(ctx, realID); err == nil {
			return winner, nil
		} else if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}

	zap.S().Errorw("handle generation exhausted", "attempts", r.maxAttempts, "capacity", r.handles.Capacity())
	return nil, models.ErrHandleSpaceExhausted
}

// Get returns the identity for realID without creating it
func (r *Registry) Get(ctx context.Context, realID string) (*models.PartyIdentity, error) {
	return r.store.FindByRealID(ctx, realID)
}

// ReverseLookup returns the real party id behind a handle. It is an
// administrative capability and must never be reachable from counselor flows.
func (r *Registry) ReverseLookup(ctx context.Context, handle string) (string, error) {
	identity, err := r.store.FindByHandle(ctx, handle)
	if err != nil {
		return "", err
	}
	return identity.RealID, nil
}

// SetBlocked toggles the blocked flag. An identity that has never made
// contact is created first so the block is in place before they arrive.
func (r *Registry) SetBlocked(ctx context.Context, realID string, blocked bool) error {
	if _, err := r.Resolve(ctx, realID); err != nil {
		return err
	}
	return r.store.SetBlocked(ctx, realID, blocked)
}

// IsBlocked reports the blocked flag; unknown identities are not blocked
func (r *Registry) IsBlocked(ctx context.Context, realID string) (bool, error) {
	identity, err := r.store.FindByRealID(ctx, realID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return identity.Blocked, nil
}

// SetState persists the conversational state for realID
func (r *Registry) SetState(ctx context.Context, realID string, state models.ConversationState) error {
	return r.store.SetState(ctx, realID, state)
}

// SetLanguage persists the locale preference for realID
func (r *Registry) SetLanguage(ctx context.Context, realID, language string) error {
	return r.store.SetLanguage(ctx, realID, language)
}

// CountBlocked returns how many identities are currently blocked
func (r *Registry) CountBlocked(ctx context.Context) (int64, error) {
	return r.store.CountBlocked(ctx)
}
