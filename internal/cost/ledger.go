// Package cost tracks token and dollar usage of a run and guards it
// against a spending limit.
package cost

import (
	"sync"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

// Ledger accumulates usage for one run. Each subtask is charged once;
// overhead calls are charged per phase. It is safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	tasks    map[string]bool
	taskSum  models.Usage
	byCap    map[models.Capability]models.CapabilityCost
	overhead models.Usage
	byPhase  map[string]models.Usage
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		tasks:   make(map[string]bool),
		byCap:   make(map[models.Capability]models.CapabilityCost),
		byPhase: make(map[string]models.Usage),
	}
}

// Record charges a subtask's usage. A second call for the same task is
// ignored and returns false.
func (l *Ledger) Record(taskID string, c models.Capability, u models.Usage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tasks[taskID] {
		return false
	}
	l.tasks[taskID] = true
	l.taskSum = l.taskSum.Add(u)

	cc := l.byCap[c]
	cc.Tasks++
	cc.Usage = cc.Usage.Add(u)
	l.byCap[c] = cc
	return true
}

// RecordOverhead charges usage that belongs to no subtask.
func (l *Ledger) RecordOverhead(phase string, u models.Usage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.overhead = l.overhead.Add(u)
	l.byPhase[phase] = l.byPhase[phase].Add(u)
}

// Total returns task plus overhead usage.
func (l *Ledger) Total() models.Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.taskSum.Add(l.overhead)
}

// Rollup returns a snapshot of the ledger.
func (l *Ledger) Rollup() models.CostRollup {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := models.CostRollup{
		Tasks:        l.taskSum,
		Overhead:     l.overhead,
		ByCapability: make(map[models.Capability]models.CapabilityCost, len(l.byCap)),
		ByPhase:      make(map[string]models.Usage, len(l.byPhase)),
	}
	for k, v := range l.byCap {
		r.ByCapability[k] = v
	}
	for k, v := range l.byPhase {
		r.ByPhase[k] = v
	}
	return r
}
