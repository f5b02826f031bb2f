package dispatch

import (
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
)

// Bounds for a user supplied worker count. The engine itself accepts any
// pool size >= 1; callers clamp overrides with ClampWorkers.
const (
	MinWorkers = 1
	MaxWorkers = 8
)

// RecommendedWorkers maps available processing units to a pool size.
// Transcoding saturates several cores per job, so the pool stays well
// below the unit count.
func RecommendedWorkers(units int) int {
	switch {
	case units >= 8:
		return 4
	case units >= 4:
		return 3
	default:
		return 2
	}
}

// AvailableUnits reports the logical CPU count.
func AvailableUnits() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

func ClampWorkers(n int) int {
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// SlotLabel is the 1-based display label for the job at index i. It is
// assigned at submission and does not identify the goroutine that runs it.
func SlotLabel(i, poolSize int) int {
	if poolSize < 1 {
		return 1
	}
	return i%poolSize + 1
}
