package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/counsel-relay-api/api/handlers"
	th "github.com/linesmerrill/counsel-relay-api/api/testhelpers"
	"github.com/linesmerrill/counsel-relay-api/core"
	"github.com/linesmerrill/counsel-relay-api/models"
)

func connect(t *testing.T, env *th.Env, userID, category string) *models.ChatSession {
	ctx := context.Background()
	require.NoError(t, env.Core.Dispatch(ctx, th.Command(userID, "start")))
	require.NoError(t, env.Core.Dispatch(ctx, th.Button(userID, core.PayloadCategoryPrefix+category)))
	s, err := env.Sessions.GetActiveForUser(ctx, userID)
	require.NoError(t, err)
	return s
}

func TestAdmin_RegisterAndListCounselors(t *testing.T) {
	a, _, token := newApp(t)

	response := executeRequest(a, authorized(t, "PUT", "/api/v1/admin/counselors/c1", token, `{"categories": ["stress", "family"]}`))
	checkResponseCode(t, http.StatusOK, response.Code)

	var counselor models.Counselor
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &counselor))
	assert.Equal(t, "c1", counselor.ID)
	assert.ElementsMatch(t, []string{"stress", "family"}, counselor.Categories)

	response = executeRequest(a, authorized(t, "GET", "/api/v1/admin/counselors", token, ""))
	checkResponseCode(t, http.StatusOK, response.Code)

	var counselors []models.Counselor
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &counselors))
	require.Len(t, counselors, 1)
	assert.Equal(t, "c1", counselors[0].ID)
}

func TestAdmin_RegisterCounselorUnknownCategory(t *testing.T) {
	a, _, token := newApp(t)

	response := executeRequest(a, authorized(t, "PUT", "/api/v1/admin/counselors/c1", token, `{"categories": ["astrology"]}`))
	checkResponseCode(t, http.StatusBadRequest, response.Code)
}

func TestAdmin_RegisterCounselorBadBody(t *testing.T) {
	a, _, token := newApp(t)

	response := executeRequest(a, authorized(t, "PUT", "/api/v1/admin/counselors/c1", token, `{"categories": `))
	checkResponseCode(t, http.StatusBadRequest, response.Code)
}

func TestAdmin_SetCounselorActive(t *testing.T) {
	a, env, token := newApp(t)
	ctx := context.Background()
	_, err := env.Directory.Register(ctx, "c1", []string{"stress"})
	require.NoError(t, err)

	response := executeRequest(a, authorized(t, "PATCH", "/api/v1/admin/counselors/c1", token, `{}`))
	checkResponseCode(t, http.StatusBadRequest, response.Code)

	response = executeRequest(a, authorized(t, "PATCH", "/api/v1/admin/counselors/c1", token, `{"active": false}`))
	checkResponseCode(t, http.StatusOK, response.Code)

	counselor, err := env.Directory.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, counselor.Active)
}

func TestAdmin_RemoveCounselor(t *testing.T) {
	a, env, token := newApp(t)
	_, err := env.Directory.Register(context.Background(), "c1", []string{"stress"})
	require.NoError(t, err)

	response := executeRequest(a, authorized(t, "DELETE", "/api/v1/admin/counselors/c1", token, ""))
	checkResponseCode(t, http.StatusOK, response.Code)

	response = executeRequest(a, authorized(t, "DELETE", "/api/v1/admin/counselors/c1", token, ""))
	checkResponseCode(t, http.StatusNotFound, response.Code)
}

func TestAdmin_BlockAndUnblock(t *testing.T) {
	a, env, token := newApp(t)
	ctx := context.Background()
	_, err := env.Directory.Register(ctx, "c1", []string{"stress"})
	require.NoError(t, err)
	s := connect(t, env, "u1", "stress")

	response := executeRequest(a, authorized(t, "POST", "/api/v1/admin/identities/u1/block", token, ""))
	checkResponseCode(t, http.StatusOK, response.Code)

	blocked, err := env.Identities.IsBlocked(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, blocked)

	finished, err := env.Sessions.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFinished, finished.Status)

	response = executeRequest(a, authorized(t, "DELETE", "/api/v1/admin/identities/u1/block", token, ""))
	checkResponseCode(t, http.StatusOK, response.Code)

	blocked, err = env.Identities.IsBlocked(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestAdmin_LookupHandler(t *testing.T) {
	a, env, token := newApp(t)
	ctx := context.Background()
	require.NoError(t, env.Core.Dispatch(ctx, th.Command("u1", "start")))
	identity, err := env.Identities.Get(ctx, "u1")
	require.NoError(t, err)

	response := executeRequest(a, authorized(t, "GET", "/api/v1/admin/lookup/"+identity.Handle, token, ""))
	checkResponseCode(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Body.String(), `"partyId":"u1"`)

	response = executeRequest(a, authorized(t, "GET", "/api/v1/admin/lookup/User-0000", token, ""))
	checkResponseCode(t, http.StatusNotFound, response.Code)
}

func TestAdmin_ActiveSessionsAndForceFinish(t *testing.T) {
	a, env, token := newApp(t)
	ctx := context.Background()
	_, err := env.Directory.Register(ctx, "c1", []string{"stress"})
	require.NoError(t, err)
	s := connect(t, env, "u1", "stress")

	response := executeRequest(a, authorized(t, "GET", "/api/v1/admin/sessions", token, ""))
	checkResponseCode(t, http.StatusOK, response.Code)

	var summaries []core.SessionSummary
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, s.ID, summaries[0].SessionID)
	assert.Equal(t, "c1", summaries[0].CounselorID)

	url := "/api/v1/admin/sessions/" + strconv.FormatInt(s.ID, 10) + "/finish"
	response = executeRequest(a, authorized(t, "POST", url, token, ""))
	checkResponseCode(t, http.StatusOK, response.Code)

	response = executeRequest(a, authorized(t, "POST", url, token, ""))
	checkResponseCode(t, http.StatusConflict, response.Code)

	response = executeRequest(a, authorized(t, "GET", "/api/v1/admin/sessions", token, ""))
	checkResponseCode(t, http.StatusOK, response.Code)
	assert.JSONEq(t, `[]`, response.Body.String())
}

func TestAdmin_ForceFinishForUserWithoutSession(t *testing.T) {
	a, _, token := newApp(t)

	response := executeRequest(a, authorized(t, "POST", "/api/v1/admin/identities/u1/finish", token, ""))
	checkResponseCode(t, http.StatusNotFound, response.Code)
}

func TestAdmin_ForceFinishHandlerInvalidID(t *testing.T) {
	env := th.NewCore(t)
	req := httptest.NewRequest("POST", "/api/v1/admin/sessions/abc/finish", nil)
	req = mux.SetURLVars(req, map[string]string{"session_id": "abc"})
	rr := httptest.NewRecorder()

	handlers.Admin{Core: env.Core}.ForceFinishHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdmin_StatsHandler(t *testing.T) {
	env := th.NewCore(t)
	ctx := context.Background()
	_, err := env.Directory.Register(ctx, "c1", []string{"stress"})
	require.NoError(t, err)
	connect(t, env, "u1", "stress")
	require.NoError(t, env.Core.Block(ctx, "u2"))

	req := httptest.NewRequest("GET", "/api/v1/admin/stats", nil)
	rr := httptest.NewRecorder()
	handlers.Admin{Core: env.Core}.StatsHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var stats core.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Counselors)
	assert.Equal(t, int64(1), stats.ActiveSessions)
	assert.Equal(t, int64(0), stats.FinishedSessions)
	assert.Equal(t, int64(1), stats.BlockedUsers)
}

func TestAdmin_ExportHandler(t *testing.T) {
	a, env, token := newApp(t)
	ctx := context.Background()
	_, err := env.Directory.Register(ctx, "c1", []string{"stress"})
	require.NoError(t, err)
	s := connect(t, env, "u1", "stress")
	require.NoError(t, env.Core.Dispatch(ctx, th.Text("u1", "hello")))
	_, err = env.Core.ForceFinish(ctx, s.ID)
	require.NoError(t, err)

	response := executeRequest(a, authorized(t, "GET", "/api/v1/admin/export?limit=abc", token, ""))
	checkResponseCode(t, http.StatusBadRequest, response.Code)

	response = executeRequest(a, authorized(t, "GET", "/api/v1/admin/export?limit=10", token, ""))
	checkResponseCode(t, http.StatusOK, response.Code)

	var doc models.SessionExport
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &doc))
	assert.Equal(t, 1, doc.TotalSessions)
	require.Len(t, doc.Sessions, 1)
	assert.Equal(t, s.ID, doc.Sessions[0].SessionID)
	require.Len(t, doc.Sessions[0].Messages, 1)
	require.NotNil(t, doc.Sessions[0].Messages[0].Content)
	assert.Equal(t, "hello", *doc.Sessions[0].Messages[0].Content)
}
