// Package middleware provides HTTP middleware for the preview server:
// request logging in W3C Extended Log Format and Prometheus request metrics.
// Both pass http.Flusher through so streamed responses keep flushing.
package middleware
