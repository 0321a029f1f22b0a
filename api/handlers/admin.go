package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/api"
	"github.com/linesmerrill/counsel-relay-api/config"
	"github.com/linesmerrill/counsel-relay-api/core"
	"github.com/linesmerrill/counsel-relay-api/models"
)

// Admin represents the administrator handlers
type Admin struct {
	Core *core.Core
}

type registerCounselorRequest struct {
	Categories []string `json:"categories"`
}

type counselorActiveRequest struct {
	Active *bool `json:"active"`
}

type lookupResponse struct {
	Handle  string `json:"handle"`
	PartyID string `json:"partyId"`
}

// StatsHandler returns the counters shown on the administrator panel
func (h Admin) StatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	stats, err := h.Core.Stats(ctx)
	if err != nil {
		config.ErrorStatus("failed to get stats", statusFor(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListCounselorsHandler returns every registered counselor
func (h Admin) ListCounselorsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	counselors, err := h.Core.ListCounselors(ctx)
	if err != nil {
		config.ErrorStatus("failed to list counselors", statusFor(err), w, err)
		return
	}
	if counselors == nil {
		counselors = []models.Counselor{}
	}
	writeJSON(w, http.StatusOK, counselors)
}

// RegisterCounselorHandler registers a counselor or replaces the categories
// of an existing one
func (h Admin) RegisterCounselorHandler(w http.ResponseWriter, r *http.Request) {
	counselorID := mux.Vars(r)["counselor_id"]

	var req registerCounselorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	counselor, err := h.Core.RegisterCounselor(ctx, counselorID, req.Categories)
	if err != nil {
		config.ErrorStatus("failed to register counselor", statusFor(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, counselor)
}

// SetCounselorActiveHandler toggles whether a counselor takes new sessions
func (h Admin) SetCounselorActiveHandler(w http.ResponseWriter, r *http.Request) {
	counselorID := mux.Vars(r)["counselor_id"]

	var req counselorActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		if err == nil {
			err = errors.New("active is required")
		}
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := h.Core.SetCounselorActive(ctx, counselorID, *req.Active); err != nil {
		config.ErrorStatus("failed to update counselor", statusFor(err), w, err)
		return
	}
	writeMessage(w, http.StatusOK, "counselor updated")
}

// RemoveCounselorHandler deregisters a counselor
func (h Admin) RemoveCounselorHandler(w http.ResponseWriter, r *http.Request) {
	counselorID := mux.Vars(r)["counselor_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := h.Core.RemoveCounselor(ctx, counselorID); err != nil {
		config.ErrorStatus("failed to remove counselor", statusFor(err), w, err)
		return
	}
	writeMessage(w, http.StatusOK, "counselor removed")
}

// BlockHandler blocks an identity and ends its active session
func (h Admin) BlockHandler(w http.ResponseWriter, r *http.Request) {
	partyID := mux.Vars(r)["party_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := h.Core.Block(ctx, partyID); err != nil {
		config.ErrorStatus("failed to block identity", statusFor(err), w, err)
		return
	}
	writeMessage(w, http.StatusOK, "identity blocked")
}

// UnblockHandler lifts a block
func (h Admin) UnblockHandler(w http.ResponseWriter, r *http.Request) {
	partyID := mux.Vars(r)["party_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := h.Core.Unblock(ctx, partyID); err != nil {
		config.ErrorStatus("failed to unblock identity", statusFor(err), w, err)
		return
	}
	writeMessage(w, http.StatusOK, "identity unblocked")
}

// ForceFinishForUserHandler ends the active session of a user
func (h Admin) ForceFinishForUserHandler(w http.ResponseWriter, r *http.Request) {
	partyID := mux.Vars(r)["party_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	s, err := h.Core.ForceFinishForUser(ctx, partyID)
	if err != nil {
		config.ErrorStatus("failed to finish session", statusFor(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ForceFinishHandler ends a session by id
func (h Admin) ForceFinishHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := strconv.ParseInt(mux.Vars(r)["session_id"], 10, 64)
	if err != nil {
		config.ErrorStatus("invalid session id", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	s, err := h.Core.ForceFinish(ctx, sessionID)
	if err != nil {
		config.ErrorStatus("failed to finish session", statusFor(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// LookupHandler resolves an anonymous handle to the real party id
func (h Admin) LookupHandler(w http.ResponseWriter, r *http.Request) {
	handle := mux.Vars(r)["handle"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	partyID, err := h.Core.Lookup(ctx, handle)
	if err != nil {
		config.ErrorStatus("failed to look up handle", statusFor(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{Handle: handle, PartyID: partyID})
}

// ActiveSessionsHandler lists every active session
func (h Admin) ActiveSessionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	summaries, err := h.Core.ActiveSessions(ctx)
	if err != nil {
		config.ErrorStatus("failed to list sessions", statusFor(err), w, err)
		return
	}
	if summaries == nil {
		summaries = []core.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// ExportHandler returns the export document of finished sessions. The
// optional limit query parameter caps the number of sessions.
func (h Admin) ExportHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 0 {
			config.ErrorStatus("invalid limit", http.StatusBadRequest, w, err)
			return
		}
		limit = l
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	doc, err := h.Core.Export(ctx, limit)
	if err != nil {
		config.ErrorStatus("failed to export sessions", statusFor(err), w, err)
		return
	}
	zap.S().Infow("sessions exported", "count", doc.TotalSessions)
	writeJSON(w, http.StatusOK, doc)
}

// statusFor maps domain errors onto response codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyFinished),
		errors.Is(err, models.ErrDuplicateActiveSession),
		errors.Is(err, models.ErrSessionNotActive):
		return http.StatusConflict
	case errors.Is(err, models.ErrPersistence):
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.MessageResponse{Message: message})
}
