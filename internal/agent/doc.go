// Package agent keeps a locally ticking focus timer consistent with the
// server-held session.
//
// The Agent mirrors the server state machine locally (IDLE, RUNNING, PAUSED)
// and drives three background loops while RUNNING: a display tick, a
// periodic sync that heartbeats the elapsed time, and a liveness check that
// notices when another device finished the session. Every network call is
// best-effort: failures are logged and the next tick retries.
//
// All mutable state lives behind one mutex. Saves are coalesced by an
// in-flight flag and a debounce floor measured from the last successful save,
// and every save is tagged with the run token it was issued for so that a
// response arriving after stop or restart is discarded.
package agent
