package workers

import "runtime"

// Count sizes a worker pool from the CPUs available to the process.
// GOMAXPROCS already reflects container CPU quotas, so the result
// respects cgroup limits without any extra probing.
//
// multiplier scales the CPU count for the workload shape and limit
// caps the result (0 = uncapped). The count is never below 1.
//
// Operator overrides such as TRANSCODE_WORKERS are resolved by the
// caller's configuration, not here.
func Count(multiplier float64, limit int) int {
	n := max(1, int(float64(runtime.GOMAXPROCS(0))*multiplier))
	if limit > 0 {
		n = min(n, limit)
	}
	return n
}

// ForCPU sizes a pool for CPU-bound work such as encoding, one worker
// per CPU.
func ForCPU(limit int) int {
	return Count(1, limit)
}

// ForIO sizes a pool for I/O-bound work such as database connections,
// two workers per CPU.
func ForIO(limit int) int {
	return Count(2, limit)
}
