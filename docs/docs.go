// Package docs Counsel Relay API.
//
// Documentation of the Counsel Relay administration and gateway API.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - basic
//     - bearer
//
//    SecurityDefinitions:
//    basic:
//      type: basic
//    bearer:
//      type: apiKey
//      name: Authorization
//      in: header
//
// swagger:meta
package docs

import (
	"github.com/linesmerrill/counsel-relay-api/core"
	"github.com/linesmerrill/counsel-relay-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /api/v1/admin/stats admin adminStats
// Counts of counselors, sessions and blocked identities.
// responses:
//   200: statsResponse

// swagger:response statsResponse
type statsResponseWrapper struct {
	// in:body
	Body core.Stats
}

// swagger:route GET /api/v1/admin/counselors admin listCounselors
// Lists every registered counselor.
// responses:
//   200: counselorsResponse

// swagger:response counselorsResponse
type counselorsResponseWrapper struct {
	// in:body
	Body []models.Counselor
}

// swagger:route GET /api/v1/admin/sessions admin activeSessions
// Lists active sessions by anonymous handle.
// responses:
//   200: sessionsResponse

// swagger:response sessionsResponse
type sessionsResponseWrapper struct {
	// in:body
	Body []core.SessionSummary
}

// swagger:route GET /api/v1/admin/export admin exportSessions
// Exports finished sessions with their transcripts, newest first.
// responses:
//   200: exportResponse

// swagger:response exportResponse
type exportResponseWrapper struct {
	// in:body
	Body models.SessionExport
}

// swagger:route POST /api/v1/events gateway postEvent
// Hands one inbound party event to the relay.
// responses:
//   202: eventResponse

// swagger:parameters postEvent
type eventRequestWrapper struct {
	// in:body
	Body models.Event
}
