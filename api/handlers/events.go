package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/config"
	"github.com/linesmerrill/counsel-relay-api/core"
	"github.com/linesmerrill/counsel-relay-api/models"
)

// Events accepts inbound updates pushed by a transport gateway
type Events struct {
	Core *core.Core
}

var errMissingEventFields = errors.New("partyId and kind are required")

type eventResponse struct {
	Accepted bool   `json:"accepted"`
	Outcome  string `json:"outcome,omitempty"`
}

// EventHandler hands one event to the core. Replies to the party go out
// through the core's sender, so the response only reports the outcome.
// Domain rejections (blocked, nobody available, already finished) were
// already explained to the party and still answer 202.
func (e Events) EventHandler(w http.ResponseWriter, r *http.Request) {
	var ev models.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		config.ErrorStatus("failed to decode event", http.StatusBadRequest, w, err)
		return
	}
	if ev.PartyID == "" || ev.Kind == "" {
		config.ErrorStatus("invalid event", http.StatusBadRequest, w, errMissingEventFields)
		return
	}

	err := e.Core.Dispatch(r.Context(), ev)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, eventResponse{Accepted: true})
	case errors.Is(err, models.ErrPersistence):
		config.ErrorStatus("failed to process event", http.StatusInternalServerError, w, err)
	default:
		zap.S().Debugw("event rejected", "kind", ev.Kind, "outcome", err)
		writeJSON(w, http.StatusAccepted, eventResponse{Accepted: false, Outcome: err.Error()})
	}
}
