package relay_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/counsel-relay-api/models"
	"github.com/linesmerrill/counsel-relay-api/relay"
	"github.com/linesmerrill/counsel-relay-api/sessions"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, partyID string, msg models.Outbound) error {
	return m.Called(ctx, partyID, msg).Error(0)
}

type plainFormatter struct{}

func (plainFormatter) Format(_ context.Context, _ string, from relay.Attribution, content models.Content) models.Outbound {
	label := "your counselor"
	if from.Direction == relay.ToCounselor {
		label = from.Handle
	}
	return models.Outbound{Text: fmt.Sprintf("%s: %s", label, content.Text), Kind: content.Kind, MediaRef: content.MediaRef}
}

func activeSession(t *testing.T, store *sessions.MemoryStore) *models.ChatSession {
	t.Helper()
	s, err := store.Create(context.Background(), "tg-user", "tg-counselor", "stress")
	require.NoError(t, err)
	return s
}

func TestRelay_UserToCounselorCarriesHandle(t *testing.T) {
	store := sessions.NewMemoryStore()
	s := activeSession(t, store)
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "tg-counselor", models.Outbound{Text: "User-4821: hello", Kind: models.KindText}).Return(nil)

	r := relay.New(store, sender, plainFormatter{})
	msg, err := r.Forward(context.Background(), *s, "tg-user", "User-4821", models.Content{Kind: models.KindText, Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "tg-user", msg.SenderID)
	sender.AssertExpectations(t)
}

func TestRelay_CounselorToUserIsNeutral(t *testing.T) {
	store := sessions.NewMemoryStore()
	s := activeSession(t, store)
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "tg-user", mock.Anything).Return(nil)

	r := relay.New(store, sender, plainFormatter{})
	_, err := r.Forward(context.Background(), *s, "tg-counselor", "User-4821", models.Content{Kind: models.KindText, Text: "hi"})
	require.NoError(t, err)

	out := sender.Calls[0].Arguments.Get(2).(models.Outbound)
	assert.Equal(t, "your counselor: hi", out.Text)
	assert.NotContains(t, out.Text, "tg-counselor")
}

func TestRelay_MediaKeepsReference(t *testing.T) {
	store := sessions.NewMemoryStore()
	s := activeSession(t, store)
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "tg-counselor", mock.Anything).Return(nil)

	r := relay.New(store, sender, plainFormatter{})
	_, err := r.Forward(context.Background(), *s, "tg-user", "User-4821", models.Content{Kind: models.KindVoice, MediaRef: "voice-1"})
	require.NoError(t, err)

	out := sender.Calls[0].Arguments.Get(2).(models.Outbound)
	assert.Equal(t, models.KindVoice, out.Kind)
	assert.Equal(t, "voice-1", out.MediaRef)
}

func TestRelay_DeliveryFailureKeepsRecord(t *testing.T) {
	store := sessions.NewMemoryStore()
	s := activeSession(t, store)
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "tg-counselor", mock.Anything).Return(errors.New("unreachable"))

	r := relay.New(store, sender, plainFormatter{})
	msg, err := r.Forward(context.Background(), *s, "tg-user", "User-4821", models.Content{Kind: models.KindText, Text: "hello"})
	assert.ErrorIs(t, err, models.ErrDeliveryFailed)
	require.NotNil(t, msg)

	messages, err := store.ListMessages(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", *messages[0].Text)
}

func TestRelay_PersistFailureSendsNothing(t *testing.T) {
	store := sessions.NewMemoryStore()
	s := activeSession(t, store)
	_, err := store.Finish(context.Background(), s.ID)
	require.NoError(t, err)
	sender := &mockSender{}

	r := relay.New(store, sender, plainFormatter{})
	_, err = r.Forward(context.Background(), *s, "tg-user", "User-4821", models.Content{Kind: models.KindText, Text: "late"})
	assert.ErrorIs(t, err, models.ErrSessionNotActive)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_StrangerIsRejected(t *testing.T) {
	store := sessions.NewMemoryStore()
	s := activeSession(t, store)
	sender := &mockSender{}

	r := relay.New(store, sender, plainFormatter{})
	_, err := r.Forward(context.Background(), *s, "tg-other", "User-4821", models.Content{Kind: models.KindText, Text: "hi"})
	assert.Error(t, err)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}
