//go:build !gpu

package opencl

import "fmt"

// ErrNotBuilt indicates the binary was built without OpenCL support.
var ErrNotBuilt = fmt.Errorf("opencl support requires building with '-tags gpu'")

// Manager is a placeholder when OpenCL support is not compiled.
type Manager struct {
	Platform PlatformInfo
	Device   DeviceInfo
	BuildLog string
}

// WorkerSet is a placeholder when OpenCL support is not compiled.
type WorkerSet struct {
	ID int
}

// Init returns ErrNotBuilt when OpenCL support is not compiled in.
func Init(_ []byte, cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return nil, ErrNotBuilt
}

// Sets returns nil without OpenCL support.
func (m *Manager) Sets() []*WorkerSet { return nil }

// Close is a no-op without OpenCL support.
func (m *Manager) Close() {}

// Dispatch returns ErrNotBuilt.
func (w *WorkerSet) Dispatch(uint64) error { return ErrNotBuilt }

// ReadOutput returns ErrNotBuilt.
func (w *WorkerSet) ReadOutput([]byte) error { return ErrNotBuilt }
