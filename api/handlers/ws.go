package handlers

import (
	"errors"
	"net/http"

	"github.com/linesmerrill/counsel-relay-api/config"
	"github.com/linesmerrill/counsel-relay-api/transport"
)

// WebSocket upgrades a gateway connection for one party
type WebSocket struct {
	Hub *transport.Hub
}

// WebSocketHandler serves /ws?partyId=<id>. Every event read from the
// connection is attributed to that party.
func (s WebSocket) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	partyID := r.URL.Query().Get("partyId")
	if partyID == "" {
		config.ErrorStatus("failed to upgrade connection", http.StatusBadRequest, w, errors.New("partyId is required"))
		return
	}
	s.Hub.ServeWs(w, r, partyID)
}
