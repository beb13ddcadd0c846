// Package cache stores complete subtask payloads so identical subtasks are
// not sent to the reasoning service twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

// DefaultTTL is how long an entry stays valid.
const DefaultTTL = time.Hour

// Entry is one cached payload.
type Entry struct {
	Capability          models.Capability
	Payload             json.RawMessage
	Confidence          float64
	ConfidenceReasoning string
	CreatedAt           time.Time
}

// Decode returns the typed payload of the entry.
func (e Entry) Decode() (models.Payload, error) {
	return models.DecodePayload(e.Capability, e.Payload)
}

// NewEntry builds an entry from a payload.
func NewEntry(c models.Capability, p models.Payload, now time.Time) (Entry, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Entry{}, fmt.Errorf("encode payload: %w", err)
	}
	a := p.Assess()
	return Entry{
		Capability:          c,
		Payload:             raw,
		Confidence:          a.Confidence,
		ConfidenceReasoning: a.ConfidenceReasoning,
		CreatedAt:           now,
	}, nil
}

// Store is a TTL-bounded payload cache.
type Store interface {
	// Get returns a live entry. Expired entries are reported as misses.
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	// Prune drops expired entries and returns how many were removed.
	Prune(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// Key hashes capability, objective and data. encoding/json sorts map keys,
// so equal data always hashes the same.
func Key(c models.Capability, objective string, data map[string]any) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode data: %w", err)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", c, objective, b)))
	return hex.EncodeToString(sum[:]), nil
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]Entry
	now     func() time.Time
}

// NewMemory creates a memory store. A ttl <= 0 uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, entries: make(map[string]Entry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	if m.now().Sub(e.CreatedAt) >= m.ttl {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (m *Memory) Set(_ context.Context, key string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
	return nil
}

func (m *Memory) Prune(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if m.now().Sub(e.CreatedAt) >= m.ttl {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]Entry)
	return nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
