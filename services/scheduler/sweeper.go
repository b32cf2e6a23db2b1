package scheduler

import (
	"context"
	"time"
)

// Report summarises one sweep tick.
type Report struct {
	Examined int  `json:"examined"`
	Changed  int  `json:"changed"`
	Failed   int  `json:"failed"`
	Skipped  bool `json:"skipped,omitempty"`
	// Reconciled counts rows the sweep fixed from an external source instead
	// of changing their status.
	Reconciled int `json:"reconciled,omitempty"`
}

// Sweeper is a periodic, idempotent batch state transition.
type Sweeper interface {
	Name() string
	Sweep(ctx context.Context, now time.Time) (Report, error)
}
