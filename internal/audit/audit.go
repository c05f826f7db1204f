// Package audit writes the append-only record of every committed, skipped
// or failed artifact. Nothing in lakefetch reads it back during a run.
package audit

import (
	"context"
	"fmt"
	"time"
)

// Outcome of one artifact
type Outcome string

const (
	OutcomeCommitted Outcome = "COMMITTED"
	OutcomeSkipped   Outcome = "SKIPPED"
	OutcomeFailed    Outcome = "FAILED"
)

// Entry is one audit line
type Entry struct {
	Time    time.Time
	RunID   string
	Dataset string
	Stage   string // bronze, silver or gold
	URL     string
	Params  map[string]string
	Outcome Outcome
	Reason  string
	Records int
	Pages   int
	Key     string
	Error   string
}

// Sink receives audit entries
type Sink interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// Nop discards every entry
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
func (Nop) Close() error                        { return nil }

// Open creates the sink named by driver: file, sqlite or none
func Open(driver, path string) (Sink, error) {
	switch driver {
	case "", "file":
		return OpenFile(path)
	case "sqlite":
		return OpenSQLite(path)
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown audit driver %q (want file, sqlite or none)", driver)
	}
}
