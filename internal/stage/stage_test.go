package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/lakefetch/internal/audit"
	"github.com/Norgate-AV/lakefetch/internal/blob"
	"github.com/Norgate-AV/lakefetch/internal/cache"
	"github.com/Norgate-AV/lakefetch/internal/fetch"
	"github.com/Norgate-AV/lakefetch/internal/pager"
)

// fakeAPI serves fixed bodies for plain URLs and numbered pages for
// paginated ones. Unknown URLs answer 400.
type fakeAPI struct {
	mu     sync.Mutex
	bodies map[string]string
	pages  map[string]int
	errs   map[string]error
	calls  []string
	paged  []int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		bodies: map[string]string{},
		pages:  map[string]int{},
		errs:   map[string]error{},
	}
}

func (a *fakeAPI) Fetch(_ context.Context, ep fetch.Endpoint, _ bool) (*fetch.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, ep.Materialize())

	if err, ok := a.errs[ep.URL]; ok {
		return nil, err
	}

	if n, ok := a.pages[ep.URL]; ok {
		page, _ := strconv.Atoi(ep.Params["pagina"])
		a.paged = append(a.paged, page)

		body := `[]`
		if page >= 1 && page <= n {
			body = fmt.Sprintf(`[{"page":%d}]`, page)
		}
		return &fetch.Result{Body: []byte(body), ContentType: "application/json", Status: 200}, nil
	}

	if body, ok := a.bodies[ep.URL]; ok {
		return &fetch.Result{Body: []byte(body), ContentType: "application/json", Status: 200}, nil
	}

	return nil, &fetch.Error{Kind: fetch.KindBadRequest, Status: 400, URL: ep.URL}
}

func (a *fakeAPI) setPages(url string, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages[url] = n
}

func (a *fakeAPI) setBody(url, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bodies[url] = body
}

func (a *fakeAPI) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = nil
	a.paged = nil
}

func (a *fakeAPI) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func (a *fakeAPI) pagesRequested() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int(nil), a.paged...)
}

type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *recordingSink) Record(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) last() audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[len(s.entries)-1]
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// failingStore fails Put on selected keys
type failingStore struct {
	*blob.MemoryStore
	failPut map[string]bool
}

func (f *failingStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if f.failPut[key] {
		return errors.New("disk full")
	}
	return f.MemoryStore.Put(ctx, key, body, contentType)
}

// countingStore records the key of every Put
type countingStore struct {
	*blob.MemoryStore

	mu   sync.Mutex
	puts []string
}

func (c *countingStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	c.mu.Lock()
	c.puts = append(c.puts, key)
	c.mu.Unlock()
	return c.MemoryStore.Put(ctx, key, body, contentType)
}

func (c *countingStore) takePuts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	puts := c.puts
	c.puts = nil
	return puts
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type harness struct {
	api   *fakeAPI
	store blob.Store
	cache *cache.Cache
	sink  *recordingSink
}

func newHarness(store blob.Store) *harness {
	return &harness{
		api:   newFakeAPI(),
		store: store,
		cache: cache.New(store, cache.WithLogger(discard)),
		sink:  &recordingSink{},
	}
}

// runner returns a fresh runner, and so a fresh memo, over the shared
// store and API
func (h *harness) runner(opts ...Option) *Runner {
	noSleep := fetch.SleeperFunc(func(context.Context, time.Duration) error { return nil })
	p := pager.New(h.api, pager.Config{MaxPages: 50}, pager.WithSleeper(noSleep), pager.WithLogger(discard))

	opts = append([]Option{WithAudit(h.sink), WithLogger(discard), WithRunID("run-1")}, opts...)
	return New(h.api, p, h.store, h.cache, opts...)
}

func (h *harness) get(t *testing.T, key string) string {
	t.Helper()
	body, err := h.store.Get(context.Background(), key)
	require.NoError(t, err)
	return string(body)
}

func (h *harness) record(t *testing.T, key string) *cache.BuildRecord {
	t.Helper()
	rec, err := h.cache.Load(context.Background(), cache.RecordKey(key))
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"authorization", &fetch.Error{Kind: fetch.KindAuthorization}, true},
		{"wrapped authorization", fmt.Errorf("x: %w", &fetch.Error{Kind: fetch.KindAuthorization}), true},
		{"input missing", fmt.Errorf("a.json: %w", ErrInputMissing), true},
		{"canceled", context.Canceled, true},
		{"rate limit", &fetch.Error{Kind: fetch.KindRateLimit}, false},
		{"bad request", &fetch.Error{Kind: fetch.KindBadRequest}, false},
		{"deadline", &fetch.Error{Kind: fetch.KindTransient, Err: context.DeadlineExceeded}, false},
		{"other", errors.New("disk full"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "committed", Committed.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}

func TestNew_GeneratesRunID(t *testing.T) {
	h := newHarness(blob.NewMemory())
	p := pager.New(h.api, pager.Config{})

	a := New(h.api, p, h.store, h.cache, WithLogger(discard))
	b := New(h.api, p, h.store, h.cache, WithLogger(discard))

	assert.Len(t, a.RunID(), 36)
	assert.NotEqual(t, a.RunID(), b.RunID())
}
