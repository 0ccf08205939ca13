package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/fragmentforge/internal/forge"
	"github.com/playperu/fragmentforge/internal/remote"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse documents the /healthz body: one entry per dependency.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

type roomParams struct {
	Room int `path:"room" minimum:"1" maximum:"10"`
}

type sessionParams struct {
	ID string `path:"id"`
}

type adminProfileParams struct {
	ID string `path:"id"`
	AdminProfileRequest
}

type tokenParams struct {
	Token string `query:"token"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Fragment Forge API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the Fragment Forge timed escape-room quiz.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of the snapshot database and the remote store.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/login")
	postLogin.SetSummary("Log in")
	postLogin.SetDescription("Checks the team's email and password and returns an opaque session token. " +
		"The team name falls back to \"<email prefix>'s Team\" when the profile has none.")
	postLogin.AddReqStructure(LoginRequest{})
	postLogin.AddRespStructure(LoginResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(postLogin)

	// GET /api/game/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/game/state")
	getState.SetSummary("Get game state")
	getState.SetDescription("Returns the session state. Requires Bearer token.")
	getState.AddRespStructure(GameStateResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getState)

	// POST /api/game/start
	postStart, _ := r.NewOperationContext(http.MethodPost, "/api/game/start")
	postStart.SetSummary("Start round")
	postStart.SetDescription("Starts a fresh round and its countdown. Not applied without a team name. Requires Bearer token.")
	postStart.AddRespStructure(ActionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postStart)

	// POST /api/game/answer
	postAnswer, _ := r.NewOperationContext(http.MethodPost, "/api/game/answer")
	postAnswer.SetSummary("Answer a door")
	postAnswer.SetDescription("Resolves one door. Each door can be answered once. Requires Bearer token.")
	postAnswer.AddReqStructure(AnswerRequest{})
	postAnswer.AddRespStructure(AnswerResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postAnswer)

	// POST /api/game/finish
	postFinish, _ := r.NewOperationContext(http.MethodPost, "/api/game/finish")
	postFinish.SetSummary("Finish round")
	postFinish.SetDescription("Ends a running round as completed or timeout and evaluates the fragment reward. Requires Bearer token.")
	postFinish.AddReqStructure(FinishRequest{})
	postFinish.AddRespStructure(ActionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postFinish.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postFinish.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postFinish)

	// POST /api/game/reset
	postReset, _ := r.NewOperationContext(http.MethodPost, "/api/game/reset")
	postReset.SetSummary("Reset session")
	postReset.SetDescription("Stops the countdown and restores the default state. Requires Bearer token.")
	postReset.AddRespStructure(ActionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postReset.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postReset)

	// GET /api/game/rooms/{room}
	getRoom, _ := r.NewOperationContext(http.MethodGet, "/api/game/rooms/{room}")
	getRoom.SetSummary("View room")
	getRoom.SetDescription("Returns the five doors of an unlocked room. Requires Bearer token.")
	getRoom.AddReqStructure(roomParams{})
	getRoom.AddRespStructure(RoomResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(getRoom)

	// GET /api/game/session
	getSession, _ := r.NewOperationContext(http.MethodGet, "/api/game/session")
	getSession.SetSummary("Export session")
	getSession.SetDescription("Returns the session report with every answer. Requires Bearer token.")
	getSession.AddRespStructure(forge.SessionExport{}, openapi.WithHTTPStatus(http.StatusOK))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getSession)

	// GET /api/game/summary
	getSummary, _ := r.NewOperationContext(http.MethodGet, "/api/game/summary")
	getSummary.SetSummary("Round summary")
	getSummary.SetDescription("Returns the game-over overview. Requires Bearer token.")
	getSummary.AddRespStructure(forge.Summary{}, openapi.WithHTTPStatus(http.StatusOK))
	getSummary.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getSummary)

	// GET /api/game/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/game/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of state changes. Pass token as query parameter.")
	getEvents.AddReqStructure(tokenParams{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /ws/state
	getStream, _ := r.NewOperationContext(http.MethodGet, "/ws/state")
	getStream.SetSummary("WebSocket state stream")
	getStream.SetDescription("Upgrades to a WebSocket that receives every state change. Pass token as query parameter.")
	getStream.AddReqStructure(tokenParams{})
	getStream.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("application/json"))
	_ = r.AddOperation(getStream)

	// GET /api/admin/sessions
	listSessions, _ := r.NewOperationContext(http.MethodGet, "/api/admin/sessions")
	listSessions.SetSummary("List sessions")
	listSessions.SetDescription("Returns a summary of every loaded session. Requires basic auth.")
	listSessions.AddRespStructure([]AdminSessionItem{}, openapi.WithHTTPStatus(http.StatusOK))
	listSessions.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(listSessions)

	// GET /api/admin/sessions/{id}/export
	adminExport, _ := r.NewOperationContext(http.MethodGet, "/api/admin/sessions/{id}/export")
	adminExport.SetSummary("Export any session")
	adminExport.SetDescription("Returns the report of a session. Requires basic auth.")
	adminExport.AddReqStructure(sessionParams{})
	adminExport.AddRespStructure(forge.SessionExport{}, openapi.WithHTTPStatus(http.StatusOK))
	adminExport.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	adminExport.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(adminExport)

	// POST /api/admin/sessions/{id}/reset
	adminReset, _ := r.NewOperationContext(http.MethodPost, "/api/admin/sessions/{id}/reset")
	adminReset.SetSummary("Reset any session")
	adminReset.SetDescription("Restores a session to defaults. Requires basic auth.")
	adminReset.AddReqStructure(sessionParams{})
	adminReset.AddRespStructure(ActionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	adminReset.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	adminReset.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(adminReset)

	// PUT /api/admin/sessions/{id}/profile
	adminProfile, _ := r.NewOperationContext(http.MethodPut, "/api/admin/sessions/{id}/profile")
	adminProfile.SetSummary("Set team credentials")
	adminProfile.SetDescription("Stores the team name, email and bcrypt-hashed password used at login. " +
		"Revokes tokens issued earlier. Requires basic auth.")
	adminProfile.AddReqStructure(adminProfileParams{})
	adminProfile.AddRespStructure(AdminProfileResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	adminProfile.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	adminProfile.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	adminProfile.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(adminProfile)

	// GET /api/admin/sessions/{id}/round
	adminRound, _ := r.NewOperationContext(http.MethodGet, "/api/admin/sessions/{id}/round")
	adminRound.SetSummary("Remote round record")
	adminRound.SetDescription("Returns the round record held by the remote store. Requires basic auth.")
	adminRound.AddReqStructure(sessionParams{})
	adminRound.AddRespStructure(remote.Round1{}, openapi.WithHTTPStatus(http.StatusOK))
	adminRound.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	adminRound.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(adminRound)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
