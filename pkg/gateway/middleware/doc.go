// Package middleware provides HTTP middleware for the gateway's
// cross-cutting concerns: panic recovery, request ID generation, and
// structured request logging.
//
// # Middleware Chain
//
// Middleware functions are chained in a specific order:
//
//	handler = Recovery(RequestID(Logging(handler)))
//
// Order (innermost to outermost):
//  1. Logging: log request/response details
//  2. RequestID: generate and propagate request ID
//  3. Recovery: recover from panics
//
// # Request ID
//
// RequestIDMiddleware assigns each request a 32-character hex ID unless the
// client already supplied one:
//
//	X-Request-ID: a1b2c3d4e5f60718293a4b5c6d7e8f90
//
// The ID is added to the request context, echoed in the response headers,
// and attached to every log line for correlation.
//
// # Logging
//
// LoggingMiddleware uses structured logging (log/slog) to record request
// details:
//
//	{
//	  "time": "2026-08-28T10:30:00Z",
//	  "level": "INFO",
//	  "msg": "request completed",
//	  "method": "GET",
//	  "path": "/proxy/minlatency",
//	  "status": 200,
//	  "latency_ms": 87,
//	  "request_id": "a1b2c3d4..."
//	}
//
// Responses with a 4xx status log at warn level, 5xx at error level.
//
// # Recovery
//
// RecoveryMiddleware catches panics in handlers and converts them to HTTP
// 500 responses. The panic value and stack trace are logged but never
// exposed to clients.
//
// # Thread Safety
//
// All middleware functions are thread-safe and can be called concurrently
// from multiple goroutines.
package middleware
