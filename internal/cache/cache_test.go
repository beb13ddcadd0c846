package cache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

func researchEntry(t *testing.T, now time.Time) Entry {
	t.Helper()
	e, err := NewEntry(models.CapabilityResearch, &models.ResearchPayload{
		Findings:   []string{"f"},
		Sources:    []string{"s"},
		Assessment: models.Assessment{Confidence: 0.9, ConfidenceReasoning: "solid"},
	}, now)
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	return e
}

func TestKey_StableAcrossMapOrder(t *testing.T) {
	a := map[string]any{"x": 1, "y": map[string]any{"b": 2, "a": 1}}
	b := map[string]any{"y": map[string]any{"a": 1, "b": 2}, "x": 1}

	ka, err := Key(models.CapabilityResearch, "obj", a)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	kb, _ := Key(models.CapabilityResearch, "obj", b)
	if ka != kb {
		t.Error("equal data should produce equal keys")
	}

	kc, _ := Key(models.CapabilityAnalysis, "obj", a)
	if ka == kc {
		t.Error("capability should be part of the key")
	}
	kd, _ := Key(models.CapabilityResearch, "other", a)
	if ka == kd {
		t.Error("objective should be part of the key")
	}
}

func TestMemory_TTL(t *testing.T) {
	m := NewMemory(time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, "k", researchEntry(t, now)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	e, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v; want hit", ok, err)
	}
	p, err := e.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rp, ok := p.(*models.ResearchPayload); !ok || rp.Findings[0] != "f" {
		t.Errorf("payload = %#v", p)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("expired entry should miss")
	}
	if m.Len() != 0 {
		t.Errorf("expired entry should be evicted, Len = %d", m.Len())
	}
}

func TestMemory_PruneAndClear(t *testing.T) {
	m := NewMemory(time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_ = m.Set(ctx, "old", researchEntry(t, now.Add(-time.Hour)))
	_ = m.Set(ctx, "new", researchEntry(t, now))

	n, err := m.Prune(ctx)
	if err != nil || n != 1 {
		t.Errorf("Prune = %d, %v; want 1", n, err)
	}
	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len after Clear = %d", m.Len())
	}
}

func TestMemory_Concurrent(t *testing.T) {
	m := NewMemory(0)
	ctx := context.Background()
	e := researchEntry(t, time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Set(ctx, "k", e)
				_, _, _ = m.Get(ctx, "k")
			}
		}()
	}
	wg.Wait()
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	s, err := OpenSQLite(path, time.Minute)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()

	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("Get(missing) = %v, %v", ok, err)
	}

	if err := s.Set(ctx, "k", researchEntry(t, now)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// Overwrite keeps a single row.
	if err := s.Set(ctx, "k", researchEntry(t, now)); err != nil {
		t.Fatalf("Set again: %v", err)
	}

	e, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v; want hit", ok, err)
	}
	if e.Capability != models.CapabilityResearch || e.Confidence != 0.9 || e.ConfidenceReasoning != "solid" {
		t.Errorf("entry = %+v", e)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("expired entry should miss")
	}
	n, err := s.Prune(ctx)
	if err != nil || n != 1 {
		t.Errorf("Prune = %d, %v; want 1", n, err)
	}
}

func TestSQLiteStore_ReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s, err := OpenSQLite(path, time.Hour)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Set(ctx, "k", researchEntry(t, time.Now())); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	s, err = OpenSQLite(path, time.Hour)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, ok, err := s.Get(ctx, "k"); !ok || err != nil {
		t.Errorf("Get after reopen = %v, %v", ok, err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("entry should be gone after Clear")
	}
}
