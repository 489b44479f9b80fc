package mock

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coderone/termbridge/internal/terminal"
)

// Synthetic PIDs start well above any real PID range so they are
// recognizable in listings.
const pidBase = 90000

var pidCounter atomic.Int64

// ErrClosed is returned by Write and Resize after the terminal has exited.
var ErrClosed = errors.New("mock terminal is closed")

const banner = "termbridge fallback shell — real PTY allocation unavailable\r\n" +
	"Type 'help' for available commands.\r\n"

const prompt = "$ "

// Terminal is a scripted substitute for a real PTY-backed process. It honors
// the full terminal.Handle contract so every consumer is agnostic to backing
// type, and answers a small line-oriented command grammar with canned output.
type Terminal struct {
	pid  int
	cwd  string
	data chan []byte
	exit chan terminal.ExitStatus
	quit chan struct{}

	mu     sync.Mutex
	cols   uint16
	rows   uint16
	line   []byte
	killed bool

	killOnce sync.Once
}

// New creates a fallback terminal with the given working directory and
// dimensions. The greeting banner and first prompt are queued immediately.
func New(cwd string, cols, rows uint16) *Terminal {
	if cwd == "" {
		cwd = "/"
	}
	t := &Terminal{
		pid:  pidBase + int(pidCounter.Add(1)),
		cwd:  cwd,
		cols: cols,
		rows: rows,
		data: make(chan []byte, 256),
		exit: make(chan terminal.ExitStatus, 1),
		quit: make(chan struct{}),
	}
	t.emit([]byte(banner + prompt))
	return t
}

// PID returns the synthetic process id.
func (t *Terminal) PID() int { return t.pid }

// Data returns the output channel; closed when the terminal is killed.
func (t *Terminal) Data() <-chan []byte { return t.data }

// Exit returns the exit channel; the status is delivered exactly once.
func (t *Terminal) Exit() <-chan terminal.ExitStatus { return t.exit }

// Write parses input line by line and synthesizes output synchronously.
// Input is echoed back the way a real terminal in echo mode would.
func (t *Terminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.killed {
		return 0, ErrClosed
	}

	for _, c := range p {
		switch c {
		case '\r', '\n':
			t.emit([]byte("\r\n"))
			t.run(string(t.line))
			t.line = t.line[:0]
		case 0x7f, '\b':
			if len(t.line) > 0 {
				t.line = t.line[:len(t.line)-1]
				t.emit([]byte("\b \b"))
			}
		default:
			t.line = append(t.line, c)
			t.emit([]byte{c})
		}
	}

	return len(p), nil
}

// Resize only records the new dimensions; there is no real PTY to resize.
func (t *Terminal) Resize(cols, rows uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.killed {
		return ErrClosed
	}
	t.cols = cols
	t.rows = rows
	return nil
}

// Kill synthesizes a clean exit: code 0, no signal. Idempotent.
func (t *Terminal) Kill() error {
	t.killOnce.Do(func() {
		close(t.quit)

		t.mu.Lock()
		t.killed = true
		close(t.data)
		t.exit <- terminal.ExitStatus{Code: 0}
		t.mu.Unlock()
	})
	return nil
}

// run executes one line of input against the command grammar.
func (t *Terminal) run(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		t.emit([]byte(prompt))
		return
	}

	var out string
	switch fields[0] {
	case "help":
		out = "Available commands: help, ls, pwd, echo, clear, status\r\n"
	case "ls", "list":
		out = "README.md  src  go.mod\r\n"
	case "pwd":
		out = t.cwd + "\r\n"
	case "echo":
		out = strings.Join(fields[1:], " ") + "\r\n"
	case "clear":
		out = "\x1b[2J\x1b[H"
	case "status":
		out = fmt.Sprintf("fallback terminal: pid=%d cols=%d rows=%d platform=%s\r\n",
			t.pid, t.cols, t.rows, runtime.GOOS)
	default:
		out = fmt.Sprintf("sh: %s: command not found\r\n", fields[0])
	}

	t.emit([]byte(out + prompt))
}

// emit queues an output chunk, giving up if the terminal is killed while the
// channel is full. Callers hold t.mu; Kill closes t.quit before taking the
// lock, so a blocked emit always unwinds.
func (t *Terminal) emit(chunk []byte) {
	out := make([]byte, len(chunk))
	copy(out, chunk)

	select {
	case t.data <- out:
	case <-t.quit:
	}
}
