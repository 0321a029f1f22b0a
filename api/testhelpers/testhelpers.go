// Package testhelpers builds a Core over the in-memory stores and records
// everything it sends, for tests of the core and its transports.
package testhelpers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/counsel-relay-api/assignment"
	"github.com/linesmerrill/counsel-relay-api/config"
	"github.com/linesmerrill/counsel-relay-api/core"
	"github.com/linesmerrill/counsel-relay-api/identity"
	"github.com/linesmerrill/counsel-relay-api/models"
	"github.com/linesmerrill/counsel-relay-api/sessions"
)

// Admin is the administrator party id configured by NewCore
const Admin = "admin-1"

// RecordingSender is a relay.Sender that keeps every message per party.
// Parties listed in Unreachable fail delivery.
type RecordingSender struct {
	mu          sync.Mutex
	sent        map[string][]models.Outbound
	unreachable map[string]bool
}

// NewRecordingSender returns an empty sender
func NewRecordingSender() *RecordingSender {
	return &RecordingSender{sent: make(map[string][]models.Outbound), unreachable: make(map[string]bool)}
}

// Send records out for partyID
func (s *RecordingSender) Send(_ context.Context, partyID string, out models.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unreachable[partyID] {
		return errors.New("party unreachable")
	}
	s.sent[partyID] = append(s.sent[partyID], out)
	return nil
}

// SetUnreachable makes delivery to partyID fail or succeed again
func (s *RecordingSender) SetUnreachable(partyID string, unreachable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreachable[partyID] = unreachable
}

// Sent returns what partyID received so far
func (s *RecordingSender) Sent(partyID string) []models.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Outbound(nil), s.sent[partyID]...)
}

// Last returns the most recent message to partyID
func (s *RecordingSender) Last(partyID string) (models.Outbound, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.sent[partyID]
	if len(msgs) == 0 {
		return models.Outbound{}, false
	}
	return msgs[len(msgs)-1], true
}

// Reset forgets everything sent
func (s *RecordingSender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = make(map[string][]models.Outbound)
}

// Env is a Core with direct access to its stores
type Env struct {
	Core       *core.Core
	Sender     *RecordingSender
	Identities *identity.Registry
	Sessions   *sessions.MemoryStore
	Directory  *assignment.MemoryDirectory
	Taxonomy   *config.Taxonomy
}

// NewCore builds an Env with the embedded taxonomy, least-loaded assignment
// and Admin as the only administrator.
func NewCore(t *testing.T) *Env {
	t.Helper()

	taxonomy, err := config.LoadTaxonomy("", "en")
	require.NoError(t, err)

	handles, err := identity.NewHandleGenerator("User-", 4)
	require.NoError(t, err)

	store := sessions.NewMemoryStore()
	directory := assignment.NewMemoryDirectory()
	engine, err := assignment.NewEngine(directory, store, assignment.PolicyLeastLoaded)
	require.NoError(t, err)

	env := &Env{
		Sender:     NewRecordingSender(),
		Identities: identity.NewRegistry(identity.NewMemoryStore(), handles, 100),
		Sessions:   store,
		Directory:  directory,
		Taxonomy:   taxonomy,
	}
	env.Core, err = core.New(core.Deps{
		Identities: env.Identities,
		Sessions:   store,
		Directory:  directory,
		Engine:     engine,
		Sender:     env.Sender,
		Taxonomy:   taxonomy,
		AdminIDs:   []string{Admin},
	})
	require.NoError(t, err)
	return env
}

// Command builds a command event
func Command(partyID, command string, args ...string) models.Event {
	return models.Event{PartyID: partyID, Kind: models.EventCommand, Command: command, Args: args}
}

// Text builds a text event
func Text(partyID, text string) models.Event {
	return models.Event{PartyID: partyID, Kind: models.EventText, Text: text}
}

// Button builds a button press event
func Button(partyID, payload string) models.Event {
	return models.Event{PartyID: partyID, Kind: models.EventButton, Button: payload}
}

// Media builds a media event
func Media(partyID string, kind models.MessageKind, ref, caption string) models.Event {
	return models.Event{PartyID: partyID, Kind: models.EventMedia, Media: &models.Media{Kind: kind, Ref: ref, Caption: caption}}
}
