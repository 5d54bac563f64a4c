package bench

import (
	"fmt"
	"time"
)

// Stats is the aggregate of all joined workers.
type Stats struct {
	Workers    int
	Hashes     uint64
	Iterations uint64
	Mismatches uint64
	Elapsed    time.Duration
}

// Aggregate sums the lifetime counters of workers that have already returned from Run.
func Aggregate(workers []*Worker, elapsed time.Duration) Stats {
	s := Stats{Workers: len(workers), Elapsed: elapsed}
	for _, w := range workers {
		s.Hashes += w.Hashes()
		s.Iterations += w.Iterations()
		s.Mismatches += w.Mismatches()
	}
	return s
}

// HashesPerSecond is Hashes divided by Elapsed, zero for an empty interval.
func (s Stats) HashesPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Hashes) / s.Elapsed.Seconds()
}

// KiloHashesPerSecond is HashesPerSecond in kH/s.
func (s Stats) KiloHashesPerSecond() float64 {
	return kiloHashesPerSecond(s.Hashes, s.Elapsed)
}

func (s Stats) String() string {
	return fmt.Sprintf("Hashrate: %.0fkH/s", s.KiloHashesPerSecond())
}
