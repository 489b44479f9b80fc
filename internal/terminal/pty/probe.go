package pty

import "github.com/creack/pty"

// Available reports whether a PTY pair can currently be allocated. Used by
// the diagnostics endpoint; the probe pair is released immediately.
func Available() bool {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return false
	}
	ptmx.Close()
	tty.Close()
	return true
}
