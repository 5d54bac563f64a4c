package bench

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/cwbudde/scryptbench/internal/kdf"
)

var testParams = kdf.Params{N: 16, R: 1, P: 1}

// fakeQueue replays canned device output. All hooks run on the worker goroutine.
type fakeQueue struct {
	output     func(iter int) []byte
	onDispatch func(iter int)
	readErr    error
	readErrAt  int

	dispatches int
	offsets    []uint64
	pending    []byte
}

func (q *fakeQueue) Dispatch(offset uint64) error {
	q.dispatches++
	q.offsets = append(q.offsets, offset)
	if q.onDispatch != nil {
		q.onDispatch(q.dispatches)
	}
	q.pending = q.output(q.dispatches)
	return nil
}

func (q *fakeQueue) ReadOutput(dst []byte) error {
	if q.readErr != nil && q.dispatches >= q.readErrAt {
		return q.readErr
	}
	if q.pending == nil {
		return errors.New("no pending output")
	}
	copy(dst, q.pending)
	q.pending = nil
	return nil
}

// echoQueue returns the reference digests every iteration.
func echoQueue(table kdf.Table) *fakeQueue {
	flat := table.Flatten()
	return &fakeQueue{output: func(int) []byte { return flat }}
}

func zeroTemplateTable(t *testing.T, width int) kdf.Table {
	t.Helper()
	table, err := kdf.ComputeTable(kdf.Template{}, testParams, width)
	if err != nil {
		t.Fatalf("ComputeTable failed: %v", err)
	}
	return table
}

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func countLines(buf *bytes.Buffer, msg string) int {
	n := 0
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, `msg="`+msg+`"`) || strings.Contains(line, "msg="+msg+" ") {
			n++
		}
	}
	return n
}

func linesWith(buf *bytes.Buffer, msg string) []string {
	var out []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, `msg="`+msg+`"`) {
			out = append(out, line)
		}
	}
	return out
}
