// Package middleware holds the Echo middleware shared by every route:
// Clerk authentication, workspace permissions, request-scoped logging,
// New Relic tracing and rate limiting of the tracking endpoints.
package middleware
