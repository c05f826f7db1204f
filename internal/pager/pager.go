// Package pager finds and walks the pages of paginated JSON endpoints whose
// total size is unknown.
//
// Every page request, including the probes used to locate the last page,
// is followed by the configured inter-request delay. Page discovery
// assumes monotonic pages: once a page is empty every later page is empty.
// An upstream that returns a transient empty page in the middle of a
// non-empty range makes FindLastPage under-count.
package pager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Norgate-AV/lakefetch/internal/fetch"
)

// Fetcher is the subset of *fetch.Fetcher the pager needs
type Fetcher interface {
	Fetch(ctx context.Context, ep fetch.Endpoint, wantStructured bool) (*fetch.Result, error)
}

// Config holds the pagination settings
type Config struct {
	PageParam string
	MaxPages  int
	Delay     time.Duration
}

func (c *Config) defaults() {
	if c.PageParam == "" {
		c.PageParam = "pagina"
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 1000
	}
}

// Pager locates and walks pages of a single endpoint family
type Pager struct {
	fetcher Fetcher
	cfg     Config
	hasData func(body []byte) bool
	sleeper fetch.Sleeper
	log     *slog.Logger
}

// Option configures a Pager
type Option func(*Pager)

// WithHasData replaces the "page has data" predicate
func WithHasData(fn func(body []byte) bool) Option {
	return func(p *Pager) { p.hasData = fn }
}

// WithSleeper replaces the clock used for the inter-request delay
func WithSleeper(s fetch.Sleeper) Option {
	return func(p *Pager) { p.sleeper = s }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pager) { p.log = l }
}

// New creates a Pager
func New(f Fetcher, cfg Config, opts ...Option) *Pager {
	cfg.defaults()

	p := &Pager{
		fetcher: f,
		cfg:     cfg,
		hasData: HasData,
		sleeper: fetch.RealSleeper,
		log:     slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.log = p.log.With("component", "pager")

	return p
}

// MaxPages returns the configured page cap
func (p *Pager) MaxPages() int {
	return p.cfg.MaxPages
}

// HasData is the default predicate: a non-empty JSON array or object
func HasData(body []byte) bool {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return false
	}

	switch t := v.(type) {
	case nil:
		return false
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case string:
		return t != ""
	default:
		return true
	}
}

// Page fetches one page and waits the inter-request delay afterwards.
// A nil result with a nil error means the page has no data.
func (p *Pager) Page(ctx context.Context, ep fetch.Endpoint, params map[string]string, page int) (*fetch.Result, error) {
	pageEp := ep.WithParams(params).WithParams(map[string]string{
		p.cfg.PageParam: strconv.Itoa(page),
	})

	res, err := p.fetcher.Fetch(ctx, pageEp, true)

	if werr := p.sleeper.Sleep(ctx, p.cfg.Delay); werr != nil {
		return nil, werr
	}

	if err != nil {
		if fetch.IsFatal(err) {
			return nil, err
		}
		p.log.DebugContext(ctx, "page fetch failed, treating as empty", "page", page, "error", err)
		return nil, nil
	}

	if !p.hasData(res.Body) {
		return nil, nil
	}

	return res, nil
}

// HasPage reports whether page has data
func (p *Pager) HasPage(ctx context.Context, ep fetch.Endpoint, params map[string]string, page int) (bool, error) {
	res, err := p.Page(ctx, ep, params, page)
	if err != nil {
		return false, err
	}

	return res != nil, nil
}

// FindLastPage returns the last non-empty page, or 0 when page 1 is
// empty. It probes pages 1, 2, 4, 8, ... up to the page cap and then
// binary searches between the last non-empty probe and the first empty
// one.
func (p *Pager) FindLastPage(ctx context.Context, ep fetch.Endpoint, params map[string]string) (int, error) {
	probes := 0
	probe := func(page int) (bool, error) {
		probes++
		return p.HasPage(ctx, ep, params, page)
	}

	ok, err := probe(1)
	if err != nil {
		return 0, err
	}
	if !ok {
		p.log.InfoContext(ctx, "no data on first page", "url", ep.URL)
		return 0, nil
	}

	maxPages := p.cfg.MaxPages
	lastValid := 1
	firstEmpty := maxPages + 1

	for page := 1; page < maxPages; {
		next := min(page*2, maxPages)

		ok, err := probe(next)
		if err != nil {
			return 0, err
		}
		if !ok {
			firstEmpty = next
			break
		}

		lastValid = next
		page = next
	}

	for firstEmpty-lastValid > 1 {
		mid := lastValid + (firstEmpty-lastValid)/2

		ok, err := probe(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			lastValid = mid
		} else {
			firstEmpty = mid
		}
	}

	if lastValid == maxPages {
		p.log.WarnContext(ctx, "page cap reached, results may be truncated", "url", ep.URL, "max_pages", maxPages)
	}

	p.log.InfoContext(ctx, "located last page", "url", ep.URL, "last_page", lastValid, "requests", probes)

	return lastValid, nil
}

// Walk fetches pages from..to in order and hands each non-empty page to
// fn. It stops early at the first empty page and returns the number of
// pages delivered.
func (p *Pager) Walk(ctx context.Context, ep fetch.Endpoint, params map[string]string, from, to int, fn func(page int, res *fetch.Result) error) (int, error) {
	if from < 1 {
		from = 1
	}
	to = min(to, p.cfg.MaxPages)

	delivered := 0
	for page := from; page <= to; page++ {
		res, err := p.Page(ctx, ep, params, page)
		if err != nil {
			return delivered, err
		}
		if res == nil {
			p.log.DebugContext(ctx, "empty page, stopping", "page", page)
			break
		}

		if err := fn(page, res); err != nil {
			return delivered, fmt.Errorf("page %d: %w", page, err)
		}
		delivered++
	}

	return delivered, nil
}
