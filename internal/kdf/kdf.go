// Package kdf computes the host-side scrypt reference digests the device output is
// validated against.
package kdf

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	// InputLen is the size of the hashed block.
	InputLen = 80
	// NonceOffset is where the little-endian nonce is written into the block.
	NonceOffset = 76
	// DigestLen is the number of output bytes per work item.
	DigestLen = 32
)

// ErrInvalidParams is returned when scrypt parameters cannot be used.
var ErrInvalidParams = errors.New("invalid scrypt parameters")

// Params holds the scrypt cost parameters shared by the host reference and the kernel.
type Params struct {
	N int // memory/time cost
	R int // block size
	P int // parallelization
}

// DefaultParams matches the Litecoin-style parameter set the kernels are written for.
var DefaultParams = Params{N: 1024, R: 1, P: 1}

// Validate checks the same constraints scrypt.Key enforces, so failures surface at startup.
func (p Params) Validate() error {
	if p.N <= 1 || p.N&(p.N-1) != 0 {
		return fmt.Errorf("%w: N must be a power of two greater than 1, got %d", ErrInvalidParams, p.N)
	}
	if p.R <= 0 {
		return fmt.Errorf("%w: r must be positive, got %d", ErrInvalidParams, p.R)
	}
	if p.P <= 0 {
		return fmt.Errorf("%w: p must be positive, got %d", ErrInvalidParams, p.P)
	}
	if uint64(p.R)*uint64(p.P) >= 1<<30 {
		return fmt.Errorf("%w: r*p too large", ErrInvalidParams)
	}
	return nil
}

// ScratchSize returns the device scratch buffer size for a batch of width items.
func (p Params) ScratchSize(width int) int {
	return width * 128 * p.N
}

// Template is the fixed input block. Bytes [NonceOffset, InputLen) are replaced per nonce.
type Template [InputLen]byte

// DefaultTemplate is a block-header shaped constant shared with the kernels.
var DefaultTemplate = mustTemplate(
	"01000000" +
		"0000000000000000000000000000000000000000000000000000000000000000" +
		"d9ced4ed1130f7b7faad9be25323ffafa33232a17c3edf6cfd97bee6bafbdd97" +
		"b9aa8e4e" +
		"f0ff0f1e" +
		"00000000")

func mustTemplate(s string) Template {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != InputLen {
		panic(fmt.Sprintf("kdf: bad template literal (%d bytes): %v", len(raw), err))
	}
	var t Template
	copy(t[:], raw)
	return t
}

// WithNonce returns a copy of the template carrying nonce in its last four bytes.
func (t Template) WithNonce(nonce uint32) [InputLen]byte {
	in := [InputLen]byte(t)
	binary.LittleEndian.PutUint32(in[NonceOffset:], nonce)
	return in
}

// Digest is one 32-byte KDF output.
type Digest [DigestLen]byte

// String prints the digest most-significant byte first (byte 31 down to byte 0).
func (d Digest) String() string {
	var rev [DigestLen]byte
	for i := range d {
		rev[i] = d[DigestLen-1-i]
	}
	return "0x" + hex.EncodeToString(rev[:])
}

// Hash runs scrypt with the block as both password and salt.
func Hash(in []byte, p Params) (Digest, error) {
	var d Digest
	out, err := scrypt.Key(in, in, p.N, p.R, p.P, DigestLen)
	if err != nil {
		return d, fmt.Errorf("scrypt: %w", err)
	}
	copy(d[:], out)
	return d, nil
}
