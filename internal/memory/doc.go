// Package memory configures GOMEMLIMIT for containerized deployments and
// provides heap backpressure for the poster generator.
//
// # Why this exists
//
// Go auto-detects cgroup CPU limits for GOMAXPROCS but never reads the
// container memory limit, so a pod that transcodes video can be OOM-killed
// long before the garbage collector feels any pressure. [ConfigureFromEnv]
// closes that gap: it reads MEMORY_LIMIT (typically injected through the
// Kubernetes Downward API) and sets GOMEMLIMIT to a fraction of it.
//
// The fraction matters for this service in particular. The heavy lifting
// happens outside the Go heap: every ingest spawns ffmpeg and ffprobe
// children, and poster generation may run libvips through CGO. Those
// allocations count against the container limit but not against
// GOMEMLIMIT, so the default ratio reserves 25% of the container for them
// (MEMORY_RATIO overrides it).
//
// Deployment manifest sketch:
//
//	resources:
//	  limits:
//	    memory: "512Mi"
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// Setting GOMEMLIMIT directly also works and takes precedence; it accepts
// the usual "400MiB" forms.
//
// # Backpressure
//
// [Monitor] samples heap usage on an interval. Above the critical water
// mark it pauses heap-heavy work until usage falls back below the high
// water mark; between the marks it signals that optional work should be
// shed. The poster generator is the consumer: it blocks in WaitIfPaused
// before decoding frames and skips cache writes while ShouldThrottle
// holds. The ingest pipeline itself is not gated here because its cost
// lives in the ffmpeg child, which GOMEMLIMIT cannot see; the transcode
// package bounds that with its own concurrency gate.
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//	posters := poster.New(store, cacheDir, monitor)
//
// GOMEMLIMIT is a soft limit: the runtime GCs harder near it but can
// still exceed it, which is exactly why the ratio keeps headroom below
// the hard container limit.
package memory
