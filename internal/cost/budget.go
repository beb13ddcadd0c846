package cost

import (
	"sync"
)

// BudgetStatus represents the current state of budget consumption.
type BudgetStatus int

const (
	// BudgetOK indicates spend is below the warning threshold.
	BudgetOK BudgetStatus = iota
	// BudgetWarning indicates spend is between the warning threshold and the limit.
	BudgetWarning
	// BudgetExhausted indicates the limit is reached.
	BudgetExhausted
)

// String returns a human-readable representation of the budget status.
func (s BudgetStatus) String() string {
	switch s {
	case BudgetOK:
		return "OK"
	case BudgetWarning:
		return "Warning"
	case BudgetExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// DefaultWarningThreshold is the default fraction at which warnings begin.
const DefaultWarningThreshold = 0.80

// Budget compares a ledger's dollar total against a limit. New levels are
// not scheduled once it is exhausted; in-flight subtasks finish.
type Budget struct {
	limit            float64
	ledger           *Ledger
	warningThreshold float64
	warned           bool
	exhausted        bool
	mu               sync.Mutex
}

// NewBudget creates a budget of limit dollars over ledger.
// A limit <= 0 means unlimited.
func NewBudget(limit float64, ledger *Ledger) *Budget {
	return &Budget{
		limit:            limit,
		ledger:           ledger,
		warningThreshold: DefaultWarningThreshold,
	}
}

// SetWarningThreshold sets the warning fraction, clamped to [0, 1].
// Zero keeps the default.
func (b *Budget) SetWarningThreshold(threshold float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if threshold <= 0 {
		return
	}
	if threshold > 1 {
		threshold = 1
	}
	b.warningThreshold = threshold
}

// Limit returns the configured limit.
func (b *Budget) Limit() float64 {
	return b.limit
}

// CheckBudget returns the current status.
func (b *Budget) CheckBudget() BudgetStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status()
}

func (b *Budget) status() BudgetStatus {
	if b.limit <= 0 || b.ledger == nil {
		return BudgetOK
	}
	pct := b.ledger.Total().Cost / b.limit
	switch {
	case pct >= 1.0:
		return BudgetExhausted
	case pct >= b.warningThreshold:
		return BudgetWarning
	default:
		return BudgetOK
	}
}

// GetUsage returns spent dollars, the limit and the spent fraction.
func (b *Budget) GetUsage() (spent, limit, fraction float64) {
	if b.ledger != nil {
		spent = b.ledger.Total().Cost
	}
	if b.limit > 0 {
		fraction = spent / b.limit
	}
	return spent, b.limit, fraction
}

// CanStartNew reports whether another level may be scheduled.
func (b *Budget) CanStartNew() bool {
	return b.CheckBudget() != BudgetExhausted
}

// ShouldWarn returns true the first time the warning threshold is crossed.
func (b *Budget) ShouldWarn() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.warned || b.status() == BudgetOK {
		return false
	}
	b.warned = true
	return true
}

// OnExhausted marks the budget as exhausted. It is idempotent and returns
// true only on the first call.
func (b *Budget) OnExhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exhausted {
		return false
	}
	b.exhausted = true
	return true
}

// IsExhausted returns true once OnExhausted has been called.
func (b *Budget) IsExhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exhausted
}
