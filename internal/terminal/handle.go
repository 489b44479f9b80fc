// Package terminal defines the process handle abstraction shared by the real
// PTY backend and the scripted fallback. Consumers are agnostic to backing
// type: bytes go in through Write, bytes come out through the Data channel,
// and termination is delivered once on the Exit channel.
package terminal

// Mode identifies the backing type of a session's process handle.
type Mode string

const (
	// ModeReal is a session backed by an OS pseudo-terminal
	ModeReal Mode = "real"
	// ModeMock is a session backed by the scripted fallback terminal
	ModeMock Mode = "mock"
)

// ExitStatus describes how a process terminated.
type ExitStatus struct {
	Code   int    `json:"code"`
	Signal string `json:"signal,omitempty"`
}

// Handle is the four-operation contract every terminal backend implements.
//
// Data delivers output chunks in the exact order the backing process produced
// them and is closed when the process exits. Exit delivers the final status
// exactly once; the channel is buffered so the producer never blocks on it.
// Kill is idempotent: killing an already-dead handle returns nil.
type Handle interface {
	PID() int
	Write(p []byte) (int, error)
	Resize(cols, rows uint16) error
	Kill() error
	Data() <-chan []byte
	Exit() <-chan ExitStatus
}
