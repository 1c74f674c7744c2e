package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"video-ingest/internal/database"
	"video-ingest/internal/memory"
)

func TestStatsAggregates(t *testing.T) {
	st := &fakeStore{artifacts: map[string][]byte{
		testID: make([]byte, 1000),
		"ffffffffffffffffffffffffffffffff": make([]byte, 500),
	}}
	idx := &fakeIndex{stats: database.IndexStats{
		TotalArtifacts:       2,
		TotalBytes:           1500,
		TotalSourceBytes:     9000,
		TotalDurationSeconds: 17.5,
	}}
	router := newRouter(newTestHandlers(t, &fakeIngester{}, st, idx))

	rec := doRequest(router, http.MethodGet, "/stats", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Body is not valid JSON: %v", err)
	}

	if resp.Store.Artifacts != 2 || resp.Store.TotalBytes != 1500 {
		t.Errorf("Store stats = %+v, want 2 artifacts / 1500 bytes", resp.Store)
	}
	if resp.Index.TotalArtifacts != 2 || resp.Index.TotalDurationSeconds != 17.5 {
		t.Errorf("Index stats = %+v, want the fake's values", resp.Index)
	}
	if resp.Memory != nil {
		t.Error("Memory stats present without a monitor")
	}
	if resp.UptimeSeconds < 0 {
		t.Errorf("uptimeSeconds = %v, want non-negative", resp.UptimeSeconds)
	}
}

func TestStatsStoreFailure(t *testing.T) {
	st := &fakeStore{statsErr: errors.New("scan failed")}
	router := newRouter(newTestHandlers(t, &fakeIngester{}, st, nil))

	rec := doRequest(router, http.MethodGet, "/stats", nil, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", rec.Code)
	}
}

func TestStatsIndexFailure(t *testing.T) {
	idx := &fakeIndex{statsErr: errors.New("query failed")}
	router := newRouter(newTestHandlers(t, &fakeIngester{}, nil, idx))

	rec := doRequest(router, http.MethodGet, "/stats", nil, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", rec.Code)
	}
}

func TestStatsIncludesMemoryMonitor(t *testing.T) {
	mon := memory.NewMonitor(memory.Config{
		MemoryLimitBytes:  1 << 30,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Hour,
	})

	st := &fakeStore{}
	h := New(&fakeIngester{}, st, &fakeIndex{}, nil, mon, true)
	router := newRouter(h)

	rec := doRequest(router, http.MethodGet, "/stats", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	var resp StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Body is not valid JSON: %v", err)
	}
	if resp.Memory == nil {
		t.Fatal("Memory stats missing with a monitor attached")
	}
	if resp.Memory.LimitBytes != 1<<30 {
		t.Errorf("limitBytes = %d, want %d", resp.Memory.LimitBytes, 1<<30)
	}
	if resp.Memory.Paused {
		t.Error("Monitor reported paused without any samples")
	}
}
