// Package database maintains the artifact index for the video ingest
// service.
//
// It records one row per stored rendition:
//   - Probe metadata (dimensions, duration, frame rate)
//   - Rendition and source sizes for capacity accounting
//   - Creation time for the stats endpoint
//
// The index uses WAL mode for improved concurrent read performance and
// includes automatic schema initialization. Rows are append-only; stored
// payloads live in the artifact store, not here.
package database
