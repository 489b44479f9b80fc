// Package pty allocates real OS pseudo-terminal backed shell processes.
//
// Allocation runs through a bounded retry policy with exponential backoff;
// failure messages are classified against known resource-exhaustion
// signatures to produce actionable hints. When the retry budget is exhausted
// the factory degrades to the scripted fallback terminal instead of
// returning an error, so creation always succeeds from the caller's point of
// view, at reduced fidelity.
package pty
