package bench

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cwbudde/scryptbench/internal/kdf"
)

// Queue is one worker's private device handle set. Dispatch submits a kernel run over
// the whole batch; ReadOutput blocks until it finished and copies 32 bytes per item into
// dst. Implementations are used from a single goroutine.
type Queue interface {
	Dispatch(offset uint64) error
	ReadOutput(dst []byte) error
}

// Backend identifies a Queue implementation.
type Backend string

const (
	BackendOpenCL Backend = "opencl"
	BackendCPU    Backend = "cpu"
)

var (
	// ErrUnknownBackend is returned when the name does not match a known backend.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrNoDispatch is returned by ReadOutput before any Dispatch.
	ErrNoDispatch = errors.New("read before dispatch")
)

// NormalizeBackend maps user input to a canonical backend identifier.
func NormalizeBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "opencl", "cl", "gpu":
		return BackendOpenCL, nil
	case "cpu", "host":
		return BackendCPU, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}

// HostQueue computes the batch with the host KDF. It stands in for a device so the
// harness can run without an accelerator.
type HostQueue struct {
	tpl    kdf.Template
	params kdf.Params
	width  int
	out    []byte
	ready  bool
}

// NewHostQueue returns a queue producing width digests per dispatch.
func NewHostQueue(tpl kdf.Template, params kdf.Params, width int) *HostQueue {
	return &HostQueue{
		tpl:    tpl,
		params: params,
		width:  width,
		out:    make([]byte, width*kdf.DigestLen),
	}
}

func (q *HostQueue) Dispatch(offset uint64) error {
	batch := make(kdf.Table, q.width)
	for i := range batch {
		in := q.tpl.WithNonce(uint32(offset) + uint32(i))
		d, err := kdf.Hash(in[:], q.params)
		if err != nil {
			return err
		}
		batch[i] = d
	}
	copy(q.out, batch.Flatten())
	q.ready = true
	return nil
}

func (q *HostQueue) ReadOutput(dst []byte) error {
	if !q.ready {
		return ErrNoDispatch
	}
	if len(dst) < len(q.out) {
		return fmt.Errorf("output buffer too small: %d < %d", len(dst), len(q.out))
	}
	copy(dst, q.out)
	q.ready = false
	return nil
}
