// Package checksum computes streaming digests of file payloads.
//
// The wire protocol carries no checksum field, so digests are
// informational: both sides compute one over the payload bytes as they
// move and report it through the log, letting operators compare the two
// values after a transfer.
package checksum

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/opd-ai/ncp/limits"
)

// Algorithm names the digest algorithm in log output.
const Algorithm = "blake2b-256"

// Digest accumulates payload bytes and produces a hex digest.
type Digest struct {
	h hash.Hash
}

// New returns an empty Digest.
func New() *Digest {
	// New256 only fails for oversized keys; an unkeyed hash cannot.
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(fmt.Sprintf("blake2b.New256: %v", err))
	}
	return &Digest{h: h}
}

// Write adds payload bytes to the digest. It never fails.
func (d *Digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

// Sum returns the hex digest of everything written so far.
func (d *Digest) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// File computes the digest of a file's contents.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer f.Close()

	d := New()
	buf := make([]byte, limits.ChunkSize)
	if _, err := io.CopyBuffer(d, f, buf); err != nil {
		return "", fmt.Errorf("read for checksum: %w", err)
	}
	return d.Sum(), nil
}
