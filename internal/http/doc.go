// Package http exposes the focus timer lifecycle service over HTTP.
//
// Every endpoint except /healthz requires `Authorization: Bearer <key_id>.<secret>`;
// the optional `X-Device-ID` header names the calling device. Endpoints:
//   - POST /timer/sessions: start or heartbeat-sync a session. Body and response
//     use timerapi.StartOrSyncRequest and timerapi.SessionResponse.
//   - GET /timer/sessions/active: the owner's most recently updated RUNNING
//     session, or {"session": null}.
//   - GET /timer/sessions/{id}: a session in any status.
//   - POST /timer/sessions/{id}/pause, /resume, /complete: state transitions
//     answering 204. Complete accepts an optional observed_duration_seconds.
//   - GET /timer/sessions/{id}/events: the append-only journal in occurrence order.
//   - GET /activity?from=YYYY-MM-DD&to=YYYY-MM-DD: archived sessions by local date.
//
// Errors use timerapi.ErrorResponse with 401, 404, 409, 422 or 500. Wire types
// live in internal/timerapi so the agent's client and these handlers share them.
package http
