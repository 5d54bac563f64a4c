package kdf

import (
	"bytes"
	"crypto/sha256"
	"fmt"
)

// Table holds the expected digest for every nonce in [0, len(Table)). Index == nonce.
// It is built once before any worker starts and only read afterwards.
type Table []Digest

// ComputeTable hashes width nonces on the calling goroutine.
func ComputeTable(tpl Template, p Params, width int) (Table, error) {
	if width <= 0 {
		return nil, fmt.Errorf("batch width must be positive, got %d", width)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	table := make(Table, width)
	for nonce := 0; nonce < width; nonce++ {
		in := tpl.WithNonce(uint32(nonce))
		d, err := Hash(in[:], p)
		if err != nil {
			return nil, fmt.Errorf("nonce %d: %w", nonce, err)
		}
		table[nonce] = d
	}
	return table, nil
}

// Matches reports whether got equals the expected digest at index i.
func (t Table) Matches(i int, got []byte) bool {
	return bytes.Equal(t[i][:], got)
}

// Fingerprint hashes the whole table so callers can check it was not modified.
func (t Table) Fingerprint() [sha256.Size]byte {
	h := sha256.New()
	for i := range t {
		h.Write(t[i][:])
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// Flatten returns the table as one contiguous buffer laid out like the device output.
func (t Table) Flatten() []byte {
	out := make([]byte, 0, len(t)*DigestLen)
	for i := range t {
		out = append(out, t[i][:]...)
	}
	return out
}
