package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when no artifact row matches the requested id.
var ErrNotFound = errors.New("artifact not found")

// InsertArtifact records a completed rendition. Ids are minted fresh per
// upload, so a conflicting insert is a caller bug and surfaces as a
// constraint error rather than being absorbed by an upsert.
func (d *Database) InsertArtifact(ctx context.Context, a *Artifact) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_artifact", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO artifacts (id, width, height, duration_seconds, frame_rate, size_bytes, source_name, source_bytes, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = d.db.ExecContext(ctx, query,
		a.ID,
		a.Width,
		a.Height,
		a.DurationSeconds,
		a.FrameRate,
		a.SizeBytes,
		a.SourceName,
		a.SourceBytes,
		a.CreatedAt.Unix(),
	)
	return err
}

// GetArtifact retrieves a single artifact by id. Returns ErrNotFound when
// the id is not in the index.
func (d *Database) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_artifact", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	SELECT id, width, height, duration_seconds, frame_rate, size_bytes, source_name, source_bytes, created_at
	FROM artifacts WHERE id = ?
	`

	var (
		a          Artifact
		sourceName sql.NullString
		createdAt  int64
	)

	err = d.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Width, &a.Height, &a.DurationSeconds, &a.FrameRate,
		&a.SizeBytes, &sourceName, &a.SourceBytes, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.SourceName = sourceName.String
	a.CreatedAt = time.Unix(createdAt, 0)
	return &a, nil
}

// ListRecent returns up to limit artifacts, newest first. Ties on the
// one-second created_at resolution are broken by id so the order is stable.
func (d *Database) ListRecent(ctx context.Context, limit int) ([]Artifact, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_recent", start, err) }()

	if limit <= 0 {
		limit = 10
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	SELECT id, width, height, duration_seconds, frame_rate, size_bytes, source_name, source_bytes, created_at
	FROM artifacts
	ORDER BY created_at DESC, id
	LIMIT ?
	`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	artifacts := make([]Artifact, 0, limit)
	for rows.Next() {
		var (
			a          Artifact
			sourceName sql.NullString
			createdAt  int64
		)
		if err = rows.Scan(
			&a.ID, &a.Width, &a.Height, &a.DurationSeconds, &a.FrameRate,
			&a.SizeBytes, &sourceName, &a.SourceBytes, &createdAt,
		); err != nil {
			return nil, err
		}
		a.SourceName = sourceName.String
		a.CreatedAt = time.Unix(createdAt, 0)
		artifacts = append(artifacts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return artifacts, nil
}

// Stats computes index-wide totals in a single scan.
func (d *Database) Stats(ctx context.Context) (IndexStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("index_stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	SELECT COUNT(*),
	       COALESCE(SUM(size_bytes), 0),
	       COALESCE(SUM(source_bytes), 0),
	       COALESCE(SUM(duration_seconds), 0),
	       MAX(created_at)
	FROM artifacts
	`

	var (
		stats  IndexStats
		newest sql.NullInt64
	)

	err = d.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalArtifacts,
		&stats.TotalBytes,
		&stats.TotalSourceBytes,
		&stats.TotalDurationSeconds,
		&newest,
	)
	if err != nil {
		return IndexStats{}, err
	}

	if newest.Valid {
		stats.NewestArtifact = time.Unix(newest.Int64, 0)
	}
	return stats, nil
}
