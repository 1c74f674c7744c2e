// Package handlers implements the HTTP API: the analyze ingest
// endpoint, artifact fetch/metadata/poster/download, and the
// health/readiness/version/stats operational routes.
//
// Handlers translate between HTTP and the pipeline's error taxonomy.
// Client-visible messages never carry internal paths or subprocess
// output; that detail goes to the logs.
package handlers
