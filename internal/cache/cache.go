// Package cache stores pre-normalization scan histograms keyed by a stable
// content fingerprint, so repeated queries never rescan the dataset.
// Luminosity, per-query scale factors and binning adjustments are applied
// after retrieval and are never part of the key or the stored value.
package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/sells-group/analysis-cli/internal/histogram"
)

// Key fingerprints one cacheable scan. The variation identity is the shape
// variation when applicable and nominal otherwise; weight-only systematics
// are re-applied post-retrieval and must not fragment the cache. The
// fingerprint is content-based, never object identity, so caches survive
// object copies.
func Key(sampleName, variationID, variableKey, cutExpr string) string {
	h := sha256.New()
	for _, part := range []string{sampleName, variationID, variableKey, cutExpr} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cache maps fingerprints to stored histograms. Put overwrites any prior
// entry; there is no eviction.
type Cache interface {
	Get(key string) (*histogram.H1, bool)
	Put(key string, h *histogram.H1) error
	Close() error
}

// Memory is a process-local map cache.
type Memory struct {
	entries map[string]*histogram.H1
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*histogram.H1)}
}

// Get returns a copy of the stored histogram so callers can scale and
// restyle it freely.
func (m *Memory) Get(key string) (*histogram.H1, bool) {
	h, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return h.Clone(), true
}

func (m *Memory) Put(key string, h *histogram.H1) error {
	m.entries[key] = h.Clone()
	return nil
}

func (m *Memory) Len() int { return len(m.entries) }

func (m *Memory) Close() error { return nil }
