// Package core wires the identity registry, session store, assignment
// engine, state machine and relay into one explicitly constructed object
// that the transport adapters dispatch inbound events to.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/assignment"
	"github.com/linesmerrill/counsel-relay-api/config"
	"github.com/linesmerrill/counsel-relay-api/identity"
	"github.com/linesmerrill/counsel-relay-api/models"
	"github.com/linesmerrill/counsel-relay-api/relay"
	"github.com/linesmerrill/counsel-relay-api/sessions"
)

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the wall clock
var RealClock Clock = realClock{}

// Deps are the collaborators of a Core
type Deps struct {
	Identities *identity.Registry
	Sessions   sessions.Store
	Directory  assignment.Directory
	Engine     *assignment.Engine
	Sender     relay.Sender
	Taxonomy   *config.Taxonomy
	AdminIDs   []string
	Clock      Clock
	// OpTimeout bounds the store calls made for one inbound event
	OpTimeout time.Duration
}

// Core handles inbound events from users, counselors and administrators
type Core struct {
	identities *identity.Registry
	sessions   sessions.Store
	directory  assignment.Directory
	engine     *assignment.Engine
	relay      *relay.Relay
	sender     relay.Sender
	taxonomy   *config.Taxonomy
	admins     map[string]bool
	clock      Clock
	opTimeout  time.Duration
}

// New builds a Core from deps
func New(deps Deps) (*Core, error) {
	switch {
	case deps.Identities == nil:
		return nil, errors.New("core: identity registry is required")
	case deps.Sessions == nil:
		return nil, errors.New("core: session store is required")
	case deps.Directory == nil:
		return nil, errors.New("core: counselor directory is required")
	case deps.Engine == nil:
		return nil, errors.New("core: assignment engine is required")
	case deps.Sender == nil:
		return nil, errors.New("core: sender is required")
	case deps.Taxonomy == nil:
		return nil, errors.New("core: taxonomy is required")
	}
	c := &Core{
		identities: deps.Identities,
		sessions:   deps.Sessions,
		directory:  deps.Directory,
		engine:     deps.Engine,
		sender:     deps.Sender,
		taxonomy:   deps.Taxonomy,
		admins:     make(map[string]bool, len(deps.AdminIDs)),
		clock:      deps.Clock,
		opTimeout:  deps.OpTimeout,
	}
	if c.clock == nil {
		c.clock = RealClock
	}
	for _, id := range deps.AdminIDs {
		c.admins[id] = true
	}
	c.relay = relay.New(deps.Sessions, deps.Sender, c)
	return c, nil
}

// Taxonomy returns the category taxonomy in use
func (c *Core) Taxonomy() *config.Taxonomy {
	return c.taxonomy
}

// IsAdmin reports whether partyID may use administrative commands
func (c *Core) IsAdmin(partyID string) bool {
	return c.admins[partyID]
}

// Dispatch handles one inbound event. The party is always answered through
// the sender; the returned error is for the transport's logs.
func (c *Core) Dispatch(ctx context.Context, ev models.Event) error {
	if ev.PartyID == "" {
		return fmt.Errorf("event without party id")
	}
	if c.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
	}

	blocked, err := c.identities.IsBlocked(ctx, ev.PartyID)
	if err != nil {
		c.fail(ctx, ev.PartyID, c.taxonomy.DefaultLanguage(), err)
		return err
	}
	if blocked {
		zap.S().Infow("rejected event from blocked identity", "kind", ev.Kind)
		c.notify(ctx, ev.PartyID, models.TextMessage(c.text(ctx, ev.PartyID, "blocked")))
		return models.ErrBlocked
	}

	if ev.Kind == models.EventCommand && isAdminCommand(ev.Command) && c.IsAdmin(ev.PartyID) {
		return c.handleAdminCommand(ctx, ev)
	}

	counselor, err := c.directory.Get(ctx, ev.PartyID)
	switch {
	case err == nil:
		return c.handleCounselor(ctx, ev, counselor)
	case !errors.Is(err, models.ErrNotFound):
		c.fail(ctx, ev.PartyID, c.taxonomy.DefaultLanguage(), err)
		return err
	}
	return c.handleUser(ctx, ev)
}

// notify delivers a message that is not a relay. Failures are logged only.
func (c *Core) notify(ctx context.Context, partyID string, out models.Outbound) {
	if err := c.sender.Send(ctx, partyID, out); err != nil {
		zap.S().Warnw("failed to notify party", "error", err)
	}
}

// fail tells the party about err in their language without exposing detail
func (c *Core) fail(ctx context.Context, partyID, lang string, err error) {
	key := errorKey(err)
	if key == "error_generic" {
		zap.S().Errorw("event failed", "error", err)
	}
	c.notify(ctx, partyID, models.TextMessage(c.taxonomy.Text(key, lang)))
}

// errorKey maps a domain error to its user-facing string
func errorKey(err error) string {
	switch {
	case errors.Is(err, models.ErrBlocked):
		return "blocked"
	case errors.Is(err, models.ErrUnavailable):
		return "no_counselor"
	case errors.Is(err, models.ErrDuplicateActiveSession):
		return "active_session_exists"
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrSessionNotActive):
		return "no_active_session"
	case errors.Is(err, models.ErrDeliveryFailed):
		return "delivery_failed"
	}
	return "error_generic"
}
