// Package ws implements the push transport: a WebSocket channel that
// forwards process output as it occurs and forwards inbound input frames to
// the session verbatim. A connection owns at most one session; disconnect
// kills and removes it.
package ws
