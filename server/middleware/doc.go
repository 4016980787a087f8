// Package middleware holds the Gin middleware of the HTTP server: panic
// recovery, request ids, body size limits and request logging.
package middleware
