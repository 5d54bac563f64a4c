package bench

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/scryptbench/internal/kdf"
)

func TestWorkerMatchingOutputLogsNoMismatch(t *testing.T) {
	table := zeroTemplateTable(t, 4)
	logger, buf := newTestLogger()
	stop := NewShutdown(logger)

	q := echoQueue(table)
	q.onDispatch = func(iter int) {
		if iter == 2 {
			stop.Request("test done")
		}
	}

	w := NewWorker(0, q, table, time.Hour, logger)
	if err := w.Run(stop); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if n := countLines(buf, "hash mismatch"); n != 0 {
		t.Errorf("expected no mismatch lines, got %d:\n%s", n, buf.String())
	}
	if w.Iterations() != 2 {
		t.Errorf("expected 2 iterations, got %d", w.Iterations())
	}
	if w.Hashes() != 8 {
		t.Errorf("expected 8 hashes, got %d", w.Hashes())
	}
	if w.Mismatches() != 0 {
		t.Errorf("expected 0 mismatched batches, got %d", w.Mismatches())
	}
}

func TestWorkerMismatchLoggedOncePerBatch(t *testing.T) {
	table := zeroTemplateTable(t, 4)
	logger, buf := newTestLogger()
	stop := NewShutdown(logger)

	bad := table.Flatten()
	bad[2*kdf.DigestLen] ^= 0x01
	bad[3*kdf.DigestLen+5] ^= 0x80 // later indices stay unchecked

	q := &fakeQueue{output: func(int) []byte { return bad }}
	q.onDispatch = func(int) { stop.Request("test done") }

	w := NewWorker(0, q, table, time.Hour, logger)
	if err := w.Run(stop); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lines := linesWith(buf, "hash mismatch")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one mismatch line, got %d:\n%s", len(lines), buf.String())
	}
	if w.Hashes() != 4 {
		t.Errorf("lifetime counter should still grow by the batch width, got %d", w.Hashes())
	}
	if w.Mismatches() != 1 {
		t.Errorf("expected 1 mismatched batch, got %d", w.Mismatches())
	}
}

func TestWorkerMismatchFormat(t *testing.T) {
	table := zeroTemplateTable(t, 4)
	logger, buf := newTestLogger()
	stop := NewShutdown(logger)

	bad := table.Flatten()
	bad[2*kdf.DigestLen+31] ^= 0xff
	var got kdf.Digest
	copy(got[:], bad[2*kdf.DigestLen:])

	q := &fakeQueue{output: func(int) []byte { return bad }}
	q.onDispatch = func(int) { stop.Request("test done") }

	if err := NewWorker(3, q, table, time.Hour, logger).Run(stop); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lines := linesWith(buf, "hash mismatch")
	if len(lines) != 1 {
		t.Fatalf("expected one mismatch line, got %d", len(lines))
	}
	line := lines[0]
	for _, want := range []string{
		"worker=3",
		"nonce=0x00000002",
		"index=2",
		"answer=" + table[2].String(),
		"result=" + got.String(),
	} {
		if !strings.Contains(line, want) {
			t.Errorf("mismatch line missing %q: %s", want, line)
		}
	}
	// byte 31 is printed first, so the flipped byte leads the result digest.
	if !strings.Contains(line, fmt.Sprintf("result=0x%02x", got[31])) {
		t.Errorf("digest should be printed most significant byte first: %s", line)
	}
}

func TestWorkerContinuesAfterMismatch(t *testing.T) {
	table := zeroTemplateTable(t, 4)
	logger, buf := newTestLogger()
	stop := NewShutdown(logger)

	good := table.Flatten()
	bad := append([]byte(nil), good...)
	bad[0] ^= 0x01

	q := &fakeQueue{output: func(iter int) []byte {
		if iter == 1 || iter == 3 {
			return bad
		}
		return good
	}}
	q.onDispatch = func(iter int) {
		if iter == 4 {
			stop.Request("test done")
		}
	}

	w := NewWorker(0, q, table, time.Hour, logger)
	if err := w.Run(stop); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if n := countLines(buf, "hash mismatch"); n != 2 {
		t.Errorf("expected 2 mismatch lines, got %d", n)
	}
	if w.Iterations() != 4 || w.Hashes() != 16 {
		t.Errorf("expected 4 iterations and 16 hashes, got %d and %d", w.Iterations(), w.Hashes())
	}
}

func TestWorkerCountersMonotonic(t *testing.T) {
	table := zeroTemplateTable(t, 4)
	logger, _ := newTestLogger()
	stop := NewShutdown(logger)

	var w *Worker
	var seen []uint64
	q := echoQueue(table)
	q.onDispatch = func(iter int) {
		seen = append(seen, w.Hashes())
		if iter == 5 {
			stop.Request("test done")
		}
	}

	w = NewWorker(0, q, table, time.Hour, logger)
	if err := w.Run(stop); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	seen = append(seen, w.Hashes())

	for i := 1; i < len(seen); i++ {
		if seen[i]-seen[i-1] != uint64(len(table)) {
			t.Errorf("iteration %d: counter went from %d to %d", i, seen[i-1], seen[i])
		}
	}
}

func TestWorkerCooperativeShutdown(t *testing.T) {
	table := zeroTemplateTable(t, 4)
	logger, _ := newTestLogger()
	stop := NewShutdown(logger)

	q := echoQueue(table)
	q.onDispatch = func(iter int) {
		if iter == 3 {
			stop.Request("mid-iteration")
		}
	}

	w := NewWorker(0, q, table, time.Hour, logger)
	if err := w.Run(stop); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if q.dispatches != 3 {
		t.Errorf("expected the in-flight iteration to finish and no more, got %d dispatches", q.dispatches)
	}
	if w.Iterations() != 3 {
		t.Errorf("expected 3 completed iterations, got %d", w.Iterations())
	}
}

func TestWorkerStopsBeforeFirstIteration(t *testing.T) {
	table := zeroTemplateTable(t, 2)
	logger, _ := newTestLogger()
	stop := NewShutdown(logger)
	stop.Request("already stopped")

	q := echoQueue(table)
	w := NewWorker(0, q, table, time.Hour, logger)
	if err := w.Run(stop); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if q.dispatches != 0 || w.Hashes() != 0 {
		t.Errorf("expected no work, got %d dispatches", q.dispatches)
	}
}

func TestWorkerDispatchOffsetIsAlwaysZero(t *testing.T) {
	table := zeroTemplateTable(t, 2)
	logger, _ := newTestLogger()
	stop := NewShutdown(logger)

	q := echoQueue(table)
	q.onDispatch = func(iter int) {
		if iter == 3 {
			stop.Request("test done")
		}
	}

	if err := NewWorker(0, q, table, time.Hour, logger).Run(stop); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i, off := range q.offsets {
		if off != 0 {
			t.Errorf("dispatch %d used offset %d", i, off)
		}
	}
}

func TestWorkerReadErrorIsReturned(t *testing.T) {
	table := zeroTemplateTable(t, 2)
	logger, _ := newTestLogger()
	stop := NewShutdown(logger)

	failure := errors.New("clEnqueueReadBuffer failed")
	q := echoQueue(table)
	q.readErr = failure
	q.readErrAt = 2

	w := NewWorker(1, q, table, time.Hour, logger)
	err := w.Run(stop)
	if !errors.Is(err, failure) {
		t.Fatalf("expected read failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "worker 1") {
		t.Errorf("error should name the worker: %v", err)
	}
	if w.Iterations() != 1 {
		t.Errorf("expected 1 completed iteration, got %d", w.Iterations())
	}
}

func TestWorkerReportsRollingHashrate(t *testing.T) {
	table := zeroTemplateTable(t, 4)
	logger, buf := newTestLogger()
	stop := NewShutdown(logger)

	q := echoQueue(table)
	q.onDispatch = func(iter int) {
		if iter == 4 {
			stop.Request("test done")
		}
	}

	w := NewWorker(0, q, table, 1500*time.Millisecond, logger)
	clock := time.Unix(0, 0)
	w.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	if err := w.Run(stop); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Window start at t=1s; checks at 2s (1s, no report), 3s (2s, report), 4s, 5s (2s, report).
	lines := linesWith(buf, "current hashrate")
	if len(lines) != 2 {
		t.Fatalf("expected 2 hashrate reports, got %d:\n%s", len(lines), buf.String())
	}
	// 8 hashes over 2s = 0.004 kH/s, rounds to 0.
	if !strings.Contains(lines[0], "hashrate=0kH/s") {
		t.Errorf("unexpected report: %s", lines[0])
	}
	if w.window != 0 {
		t.Errorf("window counter should reset after a report, got %d", w.window)
	}
}

func TestKiloHashesPerSecond(t *testing.T) {
	if got := kiloHashesPerSecond(6000, 2*time.Second); got != 3 {
		t.Errorf("expected 3 kH/s, got %f", got)
	}
	if got := kiloHashesPerSecond(100, 0); got != 0 {
		t.Errorf("expected 0 for empty interval, got %f", got)
	}
}
