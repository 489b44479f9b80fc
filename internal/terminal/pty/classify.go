package pty

import "strings"

// signature maps a known OS failure substring to a human-actionable hint.
type signature struct {
	substr string
	hint   string
}

// Known resource-exhaustion failure modes, collected from macOS and Linux.
// Matching is case-insensitive against the raw error text.
var signatures = []signature{
	{
		substr: "forkpty",
		hint:   "PTY limit reached. On macOS try: sudo sysctl -w kern.tty.ptmx_max=768",
	},
	{
		substr: "resource temporarily unavailable",
		hint:   "Process or PTY slots exhausted. Close idle terminal sessions or raise `ulimit -u`.",
	},
	{
		substr: "too many open files",
		hint:   "File descriptor limit hit. Raise `ulimit -n` for the service process.",
	},
	{
		substr: "/dev/ptmx",
		hint:   "PTY multiplexer unavailable. Verify /dev/ptmx exists and devpts is mounted.",
	},
	{
		substr: "operation not permitted",
		hint:   "Insufficient permissions to allocate a PTY in this environment (container seccomp/apparmor?).",
	},
}

// genericHint is used when a failure matches no known signature.
const genericHint = "Check system resources, permissions, and the configured shell path."

// Hint returns actionable guidance for a PTY allocation failure and whether
// the failure matched a known resource-exhaustion signature.
func Hint(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range signatures {
		if strings.Contains(msg, sig.substr) {
			return sig.hint, true
		}
	}
	return genericHint, false
}

// Hints returns the full hint table for diagnostics reporting.
func Hints() map[string]string {
	out := make(map[string]string, len(signatures))
	for _, sig := range signatures {
		out[sig.substr] = sig.hint
	}
	return out
}
