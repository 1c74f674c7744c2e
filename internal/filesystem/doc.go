// Package filesystem wraps os.Stat and os.Open with retry logic for NFS
// stale file handle errors.
//
// Deployments commonly mount the artifact store and poster cache on
// network volumes. When an NFS server replaces a file that a client
// still holds a handle for, operations fail with ESTALE until the
// client re-resolves the path. Retrying the operation is the standard
// recovery, and this package does that with exponential backoff:
//
//	info, err := filesystem.StatWithRetry("/video-store/abc123.mp4", filesystem.DefaultRetryConfig())
//
//	file, err := filesystem.OpenWithRetry(path, filesystem.RetryConfig{
//	    MaxRetries:     5,
//	    InitialBackoff: 100 * time.Millisecond,
//	    MaxBackoff:     time.Second,
//	})
//
// Defaults are 3 retries starting at 50ms backoff, capped at 500ms.
// Only ESTALE triggers a retry. Every other error, including ENOENT,
// returns immediately.
//
// [TrackOperation] times a single filesystem operation and reports it
// under the operation name and resolved volume label without any retry
// semantics.
//
// # Volume labels
//
// Observations carry a volume label resolved by longest-prefix match
// against the mounts registered at startup:
//
//	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
//	    "store":    cfg.StoreDir,
//	    "cache":    cfg.PosterCacheDir,
//	    "database": filepath.Dir(cfg.DBPath),
//	}))
//
// Paths outside every registered mount report as "unknown".
//
// # Observer
//
// Recording goes through the Observer interface rather than a direct
// metrics import, which keeps this package cycle-free and silent in
// tests. main registers the production implementation:
//
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//
// The store, poster, and database packages route their on-disk access
// through this package.
package filesystem
