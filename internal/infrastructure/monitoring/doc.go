/*
Package monitoring provides Prometheus metrics for the terminal service.

# Overview

Tracks HTTP request throughput/latency, terminal session lifecycle (created by
backing mode, closed by cause, reaped), PTY allocation attempts/retries/
fallbacks, streaming connection counts, and byte throughput in both
directions.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", metrics.Handler())

Metrics live on a dedicated registry so multiple instances can coexist in
tests without duplicate-registration panics.
*/
package monitoring
