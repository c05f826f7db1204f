// Package stage runs bronze ingestion and silver/gold transforms on top of
// the fetcher, the page locator and the build cache.
//
// Every artifact goes through the same sequence: a fresh skip verdict in
// the memo, then the authoritative check against storage, then the
// producer, then the output write and its build record. A build record is
// only committed after its output was written.
package stage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Norgate-AV/lakefetch/internal/audit"
	"github.com/Norgate-AV/lakefetch/internal/blob"
	"github.com/Norgate-AV/lakefetch/internal/cache"
	"github.com/Norgate-AV/lakefetch/internal/fetch"
	"github.com/Norgate-AV/lakefetch/internal/memo"
)

// ErrInputMissing means a transform input does not exist in storage
var ErrInputMissing = errors.New("input missing")

// Outcome of one artifact
type Outcome int

const (
	Committed Outcome = iota + 1
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (o Outcome) audit() audit.Outcome {
	switch o {
	case Committed:
		return audit.OutcomeCommitted
	case Skipped:
		return audit.OutcomeSkipped
	default:
		return audit.OutcomeFailed
	}
}

// IsFatal reports whether err must stop the whole run
func IsFatal(err error) bool {
	return errors.Is(err, ErrInputMissing) ||
		errors.Is(err, context.Canceled) ||
		fetch.IsFatal(err)
}

// Fetcher is the subset of *fetch.Fetcher the runner needs
type Fetcher interface {
	Fetch(ctx context.Context, ep fetch.Endpoint, wantStructured bool) (*fetch.Result, error)
}

// Pager is the subset of *pager.Pager the runner needs
type Pager interface {
	MaxPages() int
	Page(ctx context.Context, ep fetch.Endpoint, params map[string]string, page int) (*fetch.Result, error)
	FindLastPage(ctx context.Context, ep fetch.Endpoint, params map[string]string) (int, error)
	Walk(ctx context.Context, ep fetch.Endpoint, params map[string]string, from, to int, fn func(page int, res *fetch.Result) error) (int, error)
}

// Memo scopes
const (
	ScopeBronze = "bronze"
	ScopeSilver = "silver"
	ScopeGold   = "gold"
)

// Runner executes ingestion and transform jobs
type Runner struct {
	fetcher  Fetcher
	pager    Pager
	store    blob.Store
	cache    *cache.Cache
	memos    *memo.Registry
	audit    audit.Sink
	log      *slog.Logger
	runID    string
	fastSkip bool
	now      func() time.Time
}

// Option configures a Runner
type Option func(*Runner)

// WithMemo shares a memo registry across runners
func WithMemo(r *memo.Registry) Option {
	return func(rn *Runner) { rn.memos = r }
}

// WithAudit sets the audit sink
func WithAudit(s audit.Sink) Option {
	return func(rn *Runner) { rn.audit = s }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(rn *Runner) { rn.log = l }
}

// WithFastSkip skips unpaginated datasets whose output already exists
// without contacting the upstream API
func WithFastSkip(enabled bool) Option {
	return func(rn *Runner) { rn.fastSkip = enabled }
}

// WithRunID overrides the generated run identifier
func WithRunID(id string) Option {
	return func(rn *Runner) { rn.runID = id }
}

// WithClock replaces the time source for audit entries
func WithClock(now func() time.Time) Option {
	return func(rn *Runner) { rn.now = now }
}

// New creates a Runner. The build cache must sit on the same store.
func New(f Fetcher, p Pager, store blob.Store, c *cache.Cache, opts ...Option) *Runner {
	rn := &Runner{
		fetcher: f,
		pager:   p,
		store:   store,
		cache:   c,
		audit:   audit.Nop{},
		log:     slog.Default(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(rn)
	}

	if rn.memos == nil {
		rn.memos = memo.NewRegistry(memo.DefaultTTL)
	}
	if rn.runID == "" {
		rn.runID = uuid.NewString()
	}

	rn.log = rn.log.With("component", "stage", "run", rn.runID)

	return rn
}

// RunID identifies this run in logs and audit entries
func (rn *Runner) RunID() string {
	return rn.runID
}

func (rn *Runner) record(ctx context.Context, e audit.Entry) {
	e.Time = rn.now()
	e.RunID = rn.runID

	if err := rn.audit.Record(ctx, e); err != nil {
		rn.log.WarnContext(ctx, "failed to write audit entry", "dataset", e.Dataset, "error", err)
	}
}
