// Package bench runs the concurrent validate-and-measure loop against a set of device
// queues and aggregates the throughput.
package bench

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/scryptbench/internal/kdf"
)

// Options configures a benchmark run.
type Options struct {
	ReportInterval time.Duration
	Logger         *slog.Logger
}

// Run spawns one worker per queue, each locked to its own OS thread, and blocks until
// all of them observed stop. A worker that fails requests shutdown so its siblings finish
// their current iteration and return; the first error is returned alongside the stats.
// table must be fully built before Run and is never written by it.
func Run(queues []Queue, table kdf.Table, stop *Shutdown, opts Options) (Stats, error) {
	if len(queues) == 0 {
		return Stats{}, errors.New("no queues to run")
	}
	if len(table) == 0 {
		return Stats{}, errors.New("reference table is empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workers := make([]*Worker, len(queues))
	for i, q := range queues {
		if q == nil {
			return Stats{}, fmt.Errorf("queue %d is nil", i)
		}
		workers[i] = NewWorker(i, q, table, opts.ReportInterval, logger)
	}

	var g errgroup.Group
	begin := time.Now()
	for _, w := range workers {
		g.Go(func() error {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			err := w.Run(stop)
			if err != nil {
				logger.Error("worker failed", "worker", w.ID, "error", err)
				stop.Request("worker failed, stopping remaining workers")
			}
			return err
		})
	}
	err := g.Wait()
	elapsed := time.Since(begin)

	return Aggregate(workers, elapsed), err
}
