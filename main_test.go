package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"video-ingest/internal/database"
	"video-ingest/internal/metrics"
	"video-ingest/internal/startup"
)

func newTestIndex(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("database.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIndexStatsAdapter(t *testing.T) {
	db := newTestIndex(t)
	ctx := context.Background()

	adapter := indexStatsAdapter{db}
	var _ metrics.StatsProvider = adapter

	stats, err := adapter.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats on empty index failed: %v", err)
	}
	if stats.TotalArtifacts != 0 || stats.TotalBytes != 0 || stats.TotalSourceBytes != 0 || stats.TotalDurationSeconds != 0 {
		t.Errorf("empty index stats = %+v, want all zeros", stats)
	}

	artifacts := []*database.Artifact{
		{
			ID:              "00000000000000000000000000000001",
			Width:           1920,
			Height:          1080,
			DurationSeconds: 12.5,
			FrameRate:       30,
			SizeBytes:       1000,
			SourceBytes:     4000,
			CreatedAt:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:              "00000000000000000000000000000002",
			Width:           640,
			Height:          480,
			DurationSeconds: 5,
			FrameRate:       24,
			SizeBytes:       500,
			SourceBytes:     2000,
			CreatedAt:       time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		},
	}
	for _, a := range artifacts {
		if err := db.InsertArtifact(ctx, a); err != nil {
			t.Fatalf("InsertArtifact(%s) failed: %v", a.ID, err)
		}
	}

	stats, err = adapter.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalArtifacts != 2 {
		t.Errorf("TotalArtifacts = %d, want 2", stats.TotalArtifacts)
	}
	if stats.TotalBytes != 1500 {
		t.Errorf("TotalBytes = %d, want 1500", stats.TotalBytes)
	}
	if stats.TotalSourceBytes != 6000 {
		t.Errorf("TotalSourceBytes = %d, want 6000", stats.TotalSourceBytes)
	}
	if stats.TotalDurationSeconds != 17.5 {
		t.Errorf("TotalDurationSeconds = %v, want 17.5", stats.TotalDurationSeconds)
	}
}

func TestBuildStoreFilesystem(t *testing.T) {
	dir := t.TempDir()
	config := &startup.Config{
		StoreBackend: startup.BackendFilesystem,
		StoreDir:     dir,
	}

	st, location, err := buildStore(config)
	if err != nil {
		t.Fatalf("buildStore failed: %v", err)
	}
	if st == nil {
		t.Fatal("buildStore returned nil store")
	}
	if location != dir {
		t.Errorf("location = %q, want %q", location, dir)
	}

	id, size, err := st.Put(context.Background(), strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Put through built store failed: %v", err)
	}
	if size != int64(len("payload")) {
		t.Errorf("Put size = %d, want %d", size, len("payload"))
	}
	if _, err := st.Stat(context.Background(), id); err != nil {
		t.Errorf("Stat(%s) failed: %v", id, err)
	}
}

func TestBuildStoreS3Location(t *testing.T) {
	config := &startup.Config{
		StoreBackend: startup.BackendS3,
		S3Bucket:     "ingest-artifacts",
	}

	st, location, err := buildStore(config)
	if err != nil {
		t.Fatalf("buildStore failed: %v", err)
	}
	if st == nil {
		t.Fatal("buildStore returned nil store")
	}
	if location != "s3://ingest-artifacts" {
		t.Errorf("location = %q, want %q", location, "s3://ingest-artifacts")
	}
}
