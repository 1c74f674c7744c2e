package database

import "time"

// Artifact is one stored rendition together with the probe metadata captured
// during its ingest. Rows are append-only: the pipeline inserts after the
// payload is durably stored, and nothing updates or deletes them.
type Artifact struct {
	ID              string    `json:"id"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	DurationSeconds float64   `json:"durationSeconds"`
	FrameRate       float64   `json:"frameRate"`
	SizeBytes       int64     `json:"sizeBytes"`
	SourceName      string    `json:"sourceName,omitempty"`
	SourceBytes     int64     `json:"sourceBytes,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// IndexStats summarizes the whole artifact index for the stats endpoint and
// the metrics collector.
type IndexStats struct {
	TotalArtifacts       int64     `json:"totalArtifacts"`
	TotalBytes           int64     `json:"totalBytes"`
	TotalSourceBytes     int64     `json:"totalSourceBytes"`
	TotalDurationSeconds float64   `json:"totalDurationSeconds"`
	NewestArtifact       time.Time `json:"newestArtifact"`
}
