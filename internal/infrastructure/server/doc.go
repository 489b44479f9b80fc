// Package server wires the terminal service together: configuration,
// logging, metrics, the PTY factory, the session registry, both transports,
// and the idle reaper. Components never share ambient globals; everything is
// constructed once here and passed by reference.
package server
