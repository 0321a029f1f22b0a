package core_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	th "github.com/linesmerrill/counsel-relay-api/api/testhelpers"
	"github.com/linesmerrill/counsel-relay-api/core"
	"github.com/linesmerrill/counsel-relay-api/models"
)

func handleOf(t *testing.T, env *th.Env, realID string) string {
	identity, err := env.Identities.Get(context.Background(), realID)
	require.NoError(t, err)
	return identity.Handle
}

func stateOf(t *testing.T, env *th.Env, realID string) models.ConversationState {
	identity, err := env.Identities.Get(context.Background(), realID)
	require.NoError(t, err)
	return identity.State
}

func lastText(t *testing.T, env *th.Env, partyID string) string {
	out, ok := env.Sender.Last(partyID)
	require.True(t, ok, "nothing sent to %s", partyID)
	return out.Text
}

func hasPayload(out models.Outbound, payload string) bool {
	for _, b := range out.Buttons {
		if b.Payload == payload {
			return true
		}
	}
	return false
}

// connect takes userID from first contact into a session for category
func connect(t *testing.T, env *th.Env, userID, category string) *models.ChatSession {
	ctx := context.Background()
	require.NoError(t, env.Core.Dispatch(ctx, th.Command(userID, "start")))
	require.NoError(t, env.Core.Dispatch(ctx, th.Button(userID, core.PayloadCategoryPrefix+category)))
	s, err := env.Sessions.GetActiveForUser(ctx, userID)
	require.NoError(t, err)
	return s
}

func TestCore_New_RequiresDeps(t *testing.T) {
	_, err := core.New(core.Deps{})
	assert.Error(t, err)
}

func TestCore_Dispatch_RejectsEventWithoutParty(t *testing.T) {
	env := th.NewCore(t)
	assert.Error(t, env.Core.Dispatch(context.Background(), th.Text("", "hi")))
}

func TestCore_FullSession(t *testing.T) {
	ctx := context.Background()
	env := th.NewCore(t)
	_, err := env.Directory.Register(ctx, "c1", []string{"stress"})
	require.NoError(t, err)

	require.NoError(t, env.Core.Dispatch(ctx, th.Command("u1", "start")))
	handle := handleOf(t, env, "u1")
	assert.Regexp(t, `^User-\d{4}$`, handle)
	welcome, _ := env.Sender.Last("u1")
	assert.Contains(t, welcome.Text, handle)
	assert.True(t, hasPayload(welcome, core.PayloadCategoryPrefix+"stress"))
	assert.Equal(t, models.StateSelectingCategory, stateOf(t, env, "u1"))

	require.NoError(t, env.Core.Dispatch(ctx, th.Button("u1", core.PayloadCategoryPrefix+"stress")))
	session, err := env.Sessions.GetActiveForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "c1", session.CounselorID)
	assert.Equal(t, "stress", session.Category)
	assert.Equal(t, models.StateInChat, stateOf(t, env, "u1"))

	connected, _ := env.Sender.Last("u1")
	assert.Contains(t, connected.Text, handle)
	assert.True(t, hasPayload(connected, core.PayloadEnd))
	notice := lastText(t, env, "c1")
	assert.Contains(t, notice, handle)
	assert.Contains(t, notice, strconv.FormatInt(session.ID, 10))
	assert.NotContains(t, notice, "u1")

	require.NoError(t, env.Core.Dispatch(ctx, th.Text("u1", "hello")))
	assert.Equal(t, env.Taxonomy.Text("relay_text", "en", "from", handle, "text", "hello"), lastText(t, env, "c1"))

	msgs, err := env.Sessions.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1), msgs[0].Seq)
	assert.Equal(t, "u1", msgs[0].SenderID)

	require.NoError(t, env.Core.Dispatch(ctx, th.Command("c1", "reply", strconv.FormatInt(session.ID, 10))))
	require.NoError(t, env.Core.Dispatch(ctx, th.Text("c1", "how can I help?")))
	toUser := lastText(t, env, "u1")
	assert.Contains(t, toUser, "how can I help?")
	assert.Contains(t, toUser, env.Taxonomy.Text("your_counselor", "en"))
	assert.NotContains(t, toUser, "c1")
	assert.Equal(t, env.Taxonomy.Text("counselor_sent", "en", "handle", handle), lastText(t, env, "c1"))

	require.NoError(t, env.Core.Dispatch(ctx, th.Command("u1", "end")))
	ended, _ := env.Sender.Last("u1")
	assert.Equal(t, env.Taxonomy.Text("session_ended", "en"), ended.Text)
	assert.True(t, hasPayload(ended, core.PayloadCategoryPrefix+"stress"))
	assert.Contains(t, lastText(t, env, "c1"), handle)
	assert.Equal(t, models.StateSelectingCategory, stateOf(t, env, "u1"))

	finished, err := env.Sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFinished, finished.Status)
	assert.NotNil(t, finished.FinishedAt)

	_, err = env.Sessions.Finish(ctx, session.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyFinished)

	counselor, err := env.Directory.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, counselor.ReplyTarget)

	msgs, err = env.Sessions.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(2), msgs[1].Seq)
}

func TestCore_FirstContactWithoutStart(t *testing.T) {
	env := th.NewCore(t)
	require.NoError(t, env.Core.Dispatch(context.Background(), th.Text("u1", "hi")))
	assert.Equal(t, env.Taxonomy.Text("welcome_back", "en"), lastText(t, env, "u1"))
	assert.Equal(t, models.StateIdle, stateOf(t, env, "u1"))
}

func TestCore_NoCounselorAvailable(t *testing.T) {
	ctx := context.Background()
	env := th.NewCore(t)
	require.NoError(t, env.Core.Dispatch(ctx, th.Command("u1", "start")))

	err := env.Core.Dispatch(ctx, th.Button("u1", core.PayloadCategoryPrefix+"academic"))
	assert.ErrorIs(t, err, models.ErrUnavailable)
	out, _ := env.Sender.Last("u1")
	assert.Equal(t, env.Taxonomy.Text("no_counselor", "en"), out.Text)
	assert.True(t, hasPayload(out, core.PayloadCategoryPrefix+"academic"))
	assert.Equal(t, models.StateSelectingCategory, stateOf(t, env, "u1"))

	_, err = env.Sessions.GetActiveForUser(ctx, "u1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCore_CategoryByLabelText(t *testing.T) {
	ctx := context.Background()
	env := th.NewCore(t)
	_, err := env.Directory.Register(ctx, "c1", []string{"family"})
	require.NoError(t, err)
	require.NoError(t, env.Core.Dispatch(ctx, th.Command("u1", "start")))

	require.NoError(t, env.Core.Dispatch(ctx, th.Text("u1", env.Taxonomy.Label("family", "en"))))
	s, err := env.Sessions.GetActiveForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "family", s.Category)
}

func TestCore_InvalidSelection(t *testing.T) {
	ctx := context.Background()
	env := th.NewCore(t)
	require.NoError(t, env.Core.Dispatch(ctx, th.Command("u1", "start")))

	require.NoError(t, env.Core.Dispatch(ctx, th.Button("u1", core.PayloadCategoryPrefix+"astrology")))
	assert.Equal(t, env.Taxonomy.Text("invalid_selection", "en"), lastText(t, env, "u1"))

	require.NoError(t, env.Core.Dispatch(ctx, th.Text("u1", "something else")))
	assert.Equal(t, env.Taxonomy.Text("invalid_selection", "en"), lastText(t, env, "u1"))
	assert.Equal(t, models.StateSelectingCategory, stateOf(t, env, "u1"))
}

func TestCore_DuplicateActiveSessionRejected(t *testing.T) {
	ctx := context.Background()
	env := th.NewCore(t)
	_, err := env.Directory.Register(ctx, "c1", []string{"stress", "family"})
	require.NoError(t, err)
	first := connect(t, env, "u1", "stress")

	err = env.Core.Dispatch(ctx, th.Button("u1", core.PayloadCategoryPrefix+"family"))
	assert.ErrorIs(t, err, models.ErrDuplicateActiveSession)
	assert.Equal(t, env.Taxonomy.Text("active_session_exists", "en"), lastText(t, env, "u1"))

	active, err := env.Sessions.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)
}

func TestCore_StartWhileInChatReminds(t *testing.T) {
	ctx := context.Background()
	env := th.NewCore(t)
	_, err := env.Directory.Register(ctx, "c1", []string{"stress"})
	require.NoError(t, err)
	connect(t, env, "u1", "stress")

	require.NoError(t, env.Core.Dispatch(ctx, th.Command("u1", "start")))
	assert.Equal(t, env.Taxonomy.Text("still_in_chat", "en"), lastText(t, env, "u1"))
	assert.Equal(t, models.StateInChat, stateOf(t, env, "u1"))
}

func TestCore_LeastLoadedAssignment(t *testing.T) {
	ctx := context.Background()
	env := th.NewCore(t)
	_, err := env.Directory.Register(ctx, "c1", []string{"stress"})
	require.NoError(t, err)
	_, err = env.Directory.Register(ctx, "c2", []string{"stress"})
	require.NoError(t, err)
	for _, u := range []string{"x1", "x2", "x3"} {
		_, err := env.Sessions.Create(ctx, u, "c1", "stress")
		require.NoError(t, err)
	}

	s := connect(t, env, "u1", "stress")
	assert.Equal(t, "c2", s.CounselorID)
}

func TestCore_BackButtonEndsSession(t *testing.T) {
	ctx := context.Background()
	env := th.NewCore(t)
	_, err := env.Directory.Register(ctx, "c1", []string{"stress"})
	require.NoError(t, err)
	s := connect(t, env, "u1", "stress")

	require.NoError(t, env.Core.Dispatch(ctx, th.Button("u1", core.PayloadBack)))
	got, err := env.Sessions.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive())
	assert.Equal(t, models.StateSelectingCategory, stateOf(t, env, "u1"))
}

func TestCore_EndWithoutSession(t *testing.T) {
	ctx := context.Background()
	env := th.NewCore(t)
	require.NoError(t, env.Core.Dispatch(ctx, th.Command("u1", "start")))

	err := env.Core.Dispatch(ctx, th.Command("u1", "end"))
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, env.Taxonomy.Text("no_active_session", "en"), lastText(t, env, "u1"))
}

func TestCore_StaleStateIsReconciled(t *testing.T) {
	ctx := context.Background()
	env := th.NewCore(t)
	_, err := env.Directory.Register(ctx, "c1", []string{"stress"})
	require.NoError(t, err)
	s := connect(t, env, "u1", "stress")

	// finished behind the state machine's back
	_, err = env.Sessions.Finish(ctx, s.ID)
	require.NoError(t, err)

	require.NoError(t, env.Core.Dispatch(ctx, th.Text("u1", "anyone there?")))
	assert.Equal(t, env.Taxonomy.Text("invalid_selection", "en"), lastText(t, env, "u1"))
	assert.Equal(t, models.StateSelectingCategory, stateOf(t, env, "u1"))

	msgs, err := env.Sessions.ListMessages(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestCore_DeliveryFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	env := th.NewCore(t)
	_, err := env.Directory.Register(ctx, "c1", []string{"stress"})
	require.NoError(t, err)
	s := connect(t, env, "u1", "stress")
	env.Sender.SetUnreachable("c1", true)

	err = env.Core.Dispatch(ctx, th.Media("u1", models.KindPhoto, "file-1", "look"))
	assert.ErrorIs(t, err, models.ErrDeliveryFailed)
	assert.Equal(t, env.Taxonomy.Text("delivery_failed", "en"), lastText(t, env, "u1"))

	msgs, err := env.Sessions.ListMessages(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.KindPhoto, msgs[0].Kind)
	require.NotNil(t, msgs[0].MediaRef)
	assert.Equal(t, "file-1", *msgs[0].MediaRef)
}

func TestCore_VoiceCaptionDropped(t *testing.T) {
	ctx := context.Background()
	env := th.NewCore(t)
	_, err := env.Directory.Register(ctx, "c1", []string{"stress"})
	require.NoError(t, err)
	connect(t, env, "u1", "stress")

	require.NoError(t, env.Core.Dispatch(ctx, th.Media("u1", models.KindVoice, "voice-1", "ignored")))
	out, _ := env.Sender.Last("c1")
	assert.Equal(t, models.KindVoice, out.Kind)
	assert.Equal(t, "voice-1", out.MediaRef)
	assert.NotContains(t, out.Text, "ignored")
}

func TestCore_LanguageSwitch(t *testing.T) {
	ctx := context.Background()
	env := th.NewCore(t)
	require.NoError(t, env.Core.Dispatch(ctx, th.Command("u1", "start")))

	require.NoError(t, env.Core.Dispatch(ctx, th.Button("u1", core.PayloadLanguage)))
	menu, _ := env.Sender.Last("u1")
	assert.True(t, hasPayload(menu, core.PayloadLangPrefix+"am"))

	require.NoError(t, env.Core.Dispatch(ctx, th.Button("u1", core.PayloadLangPrefix+"am")))
	set, _ := env.Sender.Last("u1")
	assert.Equal(t, env.Taxonomy.Text("language_set", "am"), set.Text)
	assert.True(t, hasPayload(set, core.PayloadCategoryPrefix+"stress"))

	require.NoError(t, env.Core.Dispatch(ctx, th.Command("u1", "language", "xx")))
	assert.Equal(t, env.Taxonomy.Text("choose_language", "am"), lastText(t, env, "u1"))
}
