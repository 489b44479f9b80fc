// Package http implements the polling transport: REST endpoints for session
// creation, input, destructive output drains, resize, listing, diagnostics,
// and close. It differs from the streaming transport only in delivery; all
// session state moves through the shared manager and registry.
package http
