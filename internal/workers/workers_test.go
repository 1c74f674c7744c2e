package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	cpus := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{"one per cpu", 1, 0, cpus},
		{"two per cpu", 2, 0, cpus * 2},
		{"capped below cpu count", 2, 2, min(2, cpus*2)},
		{"fractional never drops below one", 0.1, 0, max(1, int(float64(cpus)*0.1))},
		{"zero multiplier clamps to one", 0, 0, 1},
		{"negative multiplier clamps to one", -1, 0, 1},
		{"generous limit leaves count alone", 1, 1000, cpus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestForCPU(t *testing.T) {
	cpus := runtime.GOMAXPROCS(0)

	if got := ForCPU(0); got != cpus {
		t.Errorf("ForCPU(0) = %d, want %d", got, cpus)
	}
	if got := ForCPU(1); got != 1 {
		t.Errorf("ForCPU(1) = %d, want 1", got)
	}
	if got := ForCPU(cpus + 5); got != cpus {
		t.Errorf("ForCPU(%d) = %d, want %d", cpus+5, got, cpus)
	}
}

func TestForIO(t *testing.T) {
	cpus := runtime.GOMAXPROCS(0)

	if got := ForIO(0); got != cpus*2 {
		t.Errorf("ForIO(0) = %d, want %d", got, cpus*2)
	}
	if got := ForIO(8); got != min(8, cpus*2) {
		t.Errorf("ForIO(8) = %d, want %d", got, min(8, cpus*2))
	}
}

func TestCountStable(t *testing.T) {
	first := Count(2, 10)
	for i := 0; i < 5; i++ {
		if got := Count(2, 10); got != first {
			t.Fatalf("Count varied between calls: %d then %d", first, got)
		}
	}
}
