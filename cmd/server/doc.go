// Command server runs the terminal session service: PTY-backed shell
// sessions exposed over a streaming WebSocket channel and a polling REST
// surface, with graceful degradation to a scripted fallback terminal when
// PTY allocation is exhausted.
package main
