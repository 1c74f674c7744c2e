package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"video-ingest/internal/logging"
)

// A mount pairs a normalized path prefix with the volume label reported
// for everything underneath it.
type mount struct {
	prefix string
	label  string
}

// A VolumeResolver labels file paths with the storage volume they live
// on. Prefixes match longest first, so a mount nested inside another
// resolves to the inner label.
type VolumeResolver struct {
	mounts []mount
}

// normalizePrefix absolutizes a mount path and guarantees a trailing
// slash; without it "/cache" would also claim "/cache2/x".
func normalizePrefix(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if !strings.HasSuffix(abs, "/") {
		abs += "/"
	}
	return abs
}

// NewVolumeResolver builds a resolver from label to mount path pairs,
// typically the store, cache, and database roots loaded at startup:
//
//	NewVolumeResolver(map[string]string{
//	    "store":    cfg.StoreDir,
//	    "cache":    cfg.CacheDir,
//	    "database": cfg.DatabaseDir,
//	})
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	vr := &VolumeResolver{mounts: make([]mount, 0, len(volumes))}
	for label, path := range volumes {
		vr.mounts = append(vr.mounts, mount{prefix: normalizePrefix(path), label: label})
	}
	slices.SortFunc(vr.mounts, func(a, b mount) int {
		return len(b.prefix) - len(a.prefix)
	})
	return vr
}

// Resolve reports which volume path belongs to, or "unknown" when no
// mount claims it. Safe to call on a nil resolver.
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return "unknown"
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "unknown"
	}
	// The probe slash lets a mount root match its own prefix.
	probe := abs + "/"
	for _, m := range vr.mounts {
		if strings.HasPrefix(probe, m.prefix) {
			return m.label
		}
	}
	return "unknown"
}

var defaultResolver *VolumeResolver

// SetDefaultVolumeResolver installs the resolver used when a
// RetryConfig does not carry its own. main wires this once after
// configuration is loaded.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver = vr
}

// RetryConfig bounds how long stale handle retries keep trying before
// the error is surfaced to the caller.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver, when set, takes precedence over the package
	// default for labeling this operation's metrics.
	VolumeResolver *VolumeResolver
}

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 50 * time.Millisecond
	defaultMaxBackoff     = 500 * time.Millisecond
)

// DefaultRetryConfig retries up to three times with backoff doubling
// from 50ms, capped at 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     defaultMaxRetries,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
	}
}

func (c *RetryConfig) resolveVolume(path string) string {
	vr := c.VolumeResolver
	if vr == nil {
		vr = defaultResolver
	}
	return vr.Resolve(path)
}

// isNFSStaleError matches ESTALE anywhere in err's chain, including
// inside an *os.PathError.
func isNFSStaleError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	return errno == syscall.ESTALE
}

// retryOnStale runs fn, sleeping and rerunning it while it keeps
// returning ESTALE. Any other outcome, success included, ends the loop
// on the spot. fn runs at most config.MaxRetries+1 times.
func retryOnStale(op, path string, config RetryConfig, fn func() error) error {
	volume := config.resolveVolume(path)
	start := time.Now()
	defer func() {
		observe().ObserveRetryDuration(op, volume, time.Since(start).Seconds())
	}()

	wait := config.InitialBackoff
	for attempt := 0; ; attempt++ {
		err := fn()
		switch {
		case err == nil && attempt == 0:
			return nil
		case err == nil:
			observe().ObserveRetrySuccess(op, volume)
			logging.Info("NFS %s of %s recovered on attempt %d", op, path, attempt+1)
			return nil
		case !isNFSStaleError(err):
			return err
		}

		observe().ObserveStaleError(op, volume)
		if attempt == config.MaxRetries {
			observe().ObserveRetryFailure(op, volume)
			logging.Warn("NFS %s of %s still stale after %d retries: %v", op, path, config.MaxRetries, err)
			return err
		}

		observe().ObserveRetryAttempt(op, volume)
		logging.Debug("NFS %s of %s returned a stale handle, retry %d/%d in %v",
			op, path, attempt+1, config.MaxRetries, wait)
		time.Sleep(wait)
		wait = min(wait*2, config.MaxBackoff)
	}
}

// StatWithRetry is os.Stat with stale handle retries.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	statOnce := func() error {
		var err error
		info, err = os.Stat(path)
		return err
	}
	if err := retryOnStale("stat", path, config, statOnce); err != nil {
		return nil, err
	}
	return info, nil
}

// OpenWithRetry is os.Open with stale handle retries. The caller owns
// the returned handle.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	var f *os.File
	openOnce := func() error {
		var err error
		f, err = os.Open(path)
		return err
	}
	if err := retryOnStale("open", path, config, openOnce); err != nil {
		return nil, err
	}
	return f, nil
}
