// Package middleware provides Gin middleware for the HTTP surface: CORS and
// per-IP rate limiting.
package middleware
