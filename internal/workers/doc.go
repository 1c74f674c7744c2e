/*
Package workers sizes worker pools from the CPU budget the container
actually has.

# Overview

Under cgroup CPU limits, runtime.NumCPU still reports the host's core
count, while GOMAXPROCS is set from the container quota. A transcode
gate sized by NumCPU on a 2-CPU pod scheduled onto a 64-core node would
admit 64 concurrent ffmpeg processes and spend its budget on context
switches and throttling. Everything here derives counts from
runtime.GOMAXPROCS(0) so pools match the quota.

# Usage

	// CPU-bound: one encode slot per CPU, at most 8
	gateSize := workers.ForCPU(8)

	// I/O-bound: two connections per CPU, at most 16
	poolSize := workers.ForIO(16)

	// Custom shape: 3 per CPU, capped at 24
	n := workers.Count(3, 24)

A limit of 0 leaves the count uncapped. Results are never below 1, so a
fractional multiplier on a small quota still yields a working pool.

# Operator Overrides

These are pure calculations. Environment overrides such as
TRANSCODE_WORKERS are applied by the startup configuration, which
passes the resolved count to whichever component owns the pool.
*/
package workers
