package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// ContentHashBlockSize is the block size of the Dropbox content hash scheme.
// https://www.dropbox.com/developers/reference/content-hash
const ContentHashBlockSize = 4 * 1024 * 1024

// contentHasher computes the block hash: SHA-256 of every 4 MiB block, concatenated in
// file order, then SHA-256 of the concatenation.
type contentHasher struct {
	block     hash.Hash
	blockSize int
	blockPos  int
	sums      []byte
}

// NewContentHasher returns a hash.Hash producing the Dropbox content hash.
func NewContentHasher() hash.Hash {
	return &contentHasher{block: sha256.New(), blockSize: ContentHashBlockSize}
}

func (h *contentHasher) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		chunk := min(h.blockSize-h.blockPos, len(p))
		h.block.Write(p[:chunk])
		h.blockPos += chunk
		p = p[chunk:]

		if h.blockPos == h.blockSize {
			h.sums = h.block.Sum(h.sums)
			h.block.Reset()
			h.blockPos = 0
		}
	}
	return n, nil
}

func (h *contentHasher) Sum(b []byte) []byte {
	overall := sha256.New()
	overall.Write(h.sums)
	if h.blockPos > 0 {
		overall.Write(h.block.Sum(nil))
	}
	return overall.Sum(b)
}

func (h *contentHasher) Reset() {
	h.block.Reset()
	h.blockPos = 0
	h.sums = h.sums[:0]
}

func (h *contentHasher) Size() int { return sha256.Size }

func (h *contentHasher) BlockSize() int { return sha256.BlockSize }

// ContentHash returns the hex-encoded content hash of everything read from r.
func ContentHash(r io.Reader) (string, error) {
	h := NewContentHasher()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ContentHashBytes returns the hex-encoded content hash of content.
func ContentHashBytes(content []byte) string {
	h := NewContentHasher()
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHashFile streams the file at path through the content hasher.
func ContentHashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	sum, err := ContentHash(file)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}
