package pty

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"

	"github.com/coderone/termbridge/internal/terminal"
)

// ErrClosed is returned by Write and Resize after the process has exited.
var ErrClosed = errors.New("pty session is closed")

// handle is a real OS pseudo-terminal backed process.
type handle struct {
	cmd  *exec.Cmd
	ptmx *os.File
	data chan []byte
	exit chan terminal.ExitStatus
	quit chan struct{}

	mu     sync.RWMutex
	closed bool

	killOnce sync.Once
}

// start launches the shell under a PTY and begins pumping output.
func start(spec Spec) (*handle, error) {
	cmd := exec.Command(spec.Shell)
	cmd.Dir = spec.Dir

	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, "TERM=xterm-256color")
	for key, value := range spec.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: spec.Rows,
		Cols: spec.Cols,
	})
	if err != nil {
		return nil, err
	}

	h := &handle{
		cmd:  cmd,
		ptmx: ptmx,
		data: make(chan []byte, 256),
		exit: make(chan terminal.ExitStatus, 1),
		quit: make(chan struct{}),
	}

	go h.readOutput()
	go h.waitExit()

	return h, nil
}

// readOutput pumps PTY output into the data channel in arrival order. The
// send selects on quit so an abandoned session with no consumer cannot park
// this goroutine forever once the channel buffer fills.
func (h *handle) readOutput() {
	defer close(h.data)

	buf := make([]byte, 4096)
	for {
		n, err := h.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case h.data <- chunk:
			case <-h.quit:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// waitExit reaps the child and delivers the exit status exactly once.
func (h *handle) waitExit() {
	err := h.cmd.Wait()

	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.ptmx.Close()
	h.exit <- exitStatus(err)
}

func exitStatus(err error) terminal.ExitStatus {
	if err == nil {
		return terminal.ExitStatus{Code: 0}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		status := terminal.ExitStatus{Code: exitErr.ExitCode()}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			status.Signal = ws.Signal().String()
		}
		return status
	}

	return terminal.ExitStatus{Code: -1}
}

func (h *handle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

func (h *handle) Data() <-chan []byte { return h.data }

func (h *handle) Exit() <-chan terminal.ExitStatus { return h.exit }

func (h *handle) Write(p []byte) (int, error) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()

	if closed {
		return 0, ErrClosed
	}
	return h.ptmx.Write(p)
}

func (h *handle) Resize(cols, rows uint16) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrClosed
	}
	return pty.Setsize(h.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// Kill terminates the child process. Idempotent; killing an already-dead
// process is a no-op. Closing quit releases a reader blocked on a full data
// channel, closing the PTY releases one blocked in Read, and waitExit
// delivers the final status.
func (h *handle) Kill() error {
	h.killOnce.Do(func() {
		close(h.quit)
		if h.cmd.Process != nil {
			h.cmd.Process.Kill()
		}
		h.ptmx.Close()
	})
	return nil
}
