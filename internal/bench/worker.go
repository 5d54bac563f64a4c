package bench

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/scryptbench/internal/kdf"
)

// nonceOffset is the dispatch offset of every iteration. Each batch recomputes the same
// nonce range [0, width) rather than advancing.
const nonceOffset = 0

// DefaultReportInterval is the rolling throughput window.
const DefaultReportInterval = 3 * time.Second

// Worker runs the dispatch, readback, validate, count loop against its own Queue.
// Everything but the shared Shutdown flag is owned by the worker's goroutine; the
// counters may be read by others only after Run returned.
type Worker struct {
	ID int

	queue    Queue
	table    kdf.Table
	width    int
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	output   []byte

	hashes      uint64
	iterations  uint64
	mismatches  uint64
	window      uint64
	windowStart time.Time
}

// NewWorker binds queue to a read-only reference table. The batch width is len(table).
func NewWorker(id int, queue Queue, table kdf.Table, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		ID:       id,
		queue:    queue,
		table:    table,
		width:    len(table),
		interval: interval,
		logger:   logger.With("worker", id),
		now:      time.Now,
		output:   make([]byte, len(table)*kdf.DigestLen),
	}
}

// Run iterates until stop is observed at the top of an iteration. An iteration already
// started always completes. Device errors end the loop and are returned.
func (w *Worker) Run(stop *Shutdown) error {
	w.logger.Info("thread started")
	w.windowStart = w.now()

	for !stop.Requested() {
		if err := w.step(); err != nil {
			return fmt.Errorf("worker %d: %w", w.ID, err)
		}
	}
	return nil
}

func (w *Worker) step() error {
	if err := w.queue.Dispatch(nonceOffset); err != nil {
		return err
	}
	if err := w.queue.ReadOutput(w.output); err != nil {
		return err
	}

	if idx := w.firstMismatch(); idx >= 0 {
		w.mismatches++
		var got kdf.Digest
		copy(got[:], w.output[idx*kdf.DigestLen:])
		w.logger.Warn("hash mismatch",
			"nonce", fmt.Sprintf("0x%08x", uint32(nonceOffset+idx)),
			"index", idx,
			"answer", w.table[idx].String(),
			"result", got.String(),
		)
	}

	w.hashes += uint64(w.width)
	w.window += uint64(w.width)
	w.iterations++

	w.reportIfDue()
	return nil
}

// firstMismatch returns the first index whose digest differs from the table, or -1.
func (w *Worker) firstMismatch() int {
	for i := 0; i < w.width; i++ {
		if !w.table.Matches(i, w.output[i*kdf.DigestLen:(i+1)*kdf.DigestLen]) {
			return i
		}
	}
	return -1
}

func (w *Worker) reportIfDue() {
	now := w.now()
	elapsed := now.Sub(w.windowStart)
	if elapsed <= w.interval {
		return
	}

	w.logger.Info("current hashrate",
		"hashrate", fmt.Sprintf("%.0fkH/s", kiloHashesPerSecond(w.window, elapsed)),
		"window", elapsed.Round(time.Millisecond),
	)
	w.window = 0
	w.windowStart = now
}

// Hashes is the lifetime count of hashes computed by the worker.
func (w *Worker) Hashes() uint64 { return w.hashes }

// Iterations is the number of completed batches.
func (w *Worker) Iterations() uint64 { return w.iterations }

// Mismatches is the number of batches that contained at least one wrong digest.
func (w *Worker) Mismatches() uint64 { return w.mismatches }

func kiloHashesPerSecond(hashes uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(hashes) / elapsed.Seconds() / 1e3
}
