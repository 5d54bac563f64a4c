// Package kernel resolves kernel variant names to OpenCL source files and loads them.
package kernel

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDir is where kernel variants live relative to the working directory.
	DefaultDir = "kernel"
	// MaxSourceSize bounds how much of a kernel file is read.
	MaxSourceSize = 0x100000
	// EntryPoint is the kernel function every variant must export.
	EntryPoint = "run"
	// BuildOptions suppresses warnings and adds the working directory to the include path.
	BuildOptions = "-w -I."
)

// ErrEmptyName is returned for a blank variant name.
var ErrEmptyName = errors.New("kernel name is empty")

// Source is loaded kernel program text.
type Source struct {
	Name string
	Path string
	Text []byte
}

// Resolve maps a variant name to <dir>/<name>.cl.
func Resolve(dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, name+".cl"), nil
}

// Load reads at most MaxSourceSize bytes of the named variant.
func Load(dir, name string) (*Source, error) {
	path, err := Resolve(dir, name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load kernel %s: %w", name, err)
	}
	defer f.Close()

	text, err := io.ReadAll(io.LimitReader(f, MaxSourceSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read kernel %s: %w", name, err)
	}

	return &Source{Name: name, Path: path, Text: text}, nil
}
