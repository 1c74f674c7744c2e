// Package middleware provides HTTP middleware for the ingest API.
//
// It includes:
//   - W3C extended format access logging
//   - Prometheus request metrics with bounded route labels
//   - Response compression (gzip) for JSON surfaces
//   - Cross-origin resource sharing with credentials support
package middleware
