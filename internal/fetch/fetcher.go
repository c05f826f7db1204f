// Package fetch issues single logical HTTP GETs with retry, backoff and
// response caching. It knows nothing about pagination or datasets.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/Norgate-AV/lakefetch/internal/codes"
	"github.com/Norgate-AV/lakefetch/internal/digest"
)

// Config holds the live request settings
type Config struct {
	MaxRetries    int
	Timeout       time.Duration
	UserAgent     string
	SecretHeaders []string
	UnsafeLogging bool
}

func (c *Config) defaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 10
	}
	if c.Timeout <= 0 {
		c.Timeout = 180 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "lakefetch"
	}
}

// Fetcher performs GET requests under a single retry policy
type Fetcher struct {
	cfg    Config
	client *http.Client
	cache  ResponseCache
	policy Policy
	log    *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*http.Client
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithCache enables response caching
func WithCache(c ResponseCache) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// WithSleeper replaces the clock used between retries
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) { f.policy.Sleeper = s }
}

// New creates a Fetcher
func New(cfg Config, opts ...Option) *Fetcher {
	cfg.defaults()

	f := &Fetcher{
		cfg:    cfg,
		client: &http.Client{},
		policy: DefaultPolicy(cfg.MaxRetries),
		log:    slog.Default(),
		now:    time.Now,

		sessions: map[string]*http.Client{},
	}

	for _, opt := range opts {
		opt(f)
	}

	f.log = f.log.With("component", "fetcher")
	f.policy.Logger = f.log

	return f
}

// Fetch performs one logical GET. A returned error is always a *Error;
// callers treat every kind except KindAuthorization as "no data".
func (f *Fetcher) Fetch(ctx context.Context, ep Endpoint, wantStructured bool) (*Result, error) {
	target := ep.Materialize()
	key := digest.Request(target, ep.Header)

	f.log.DebugContext(ctx, "fetch",
		"url", target,
		"headers", MaskHeaders(ep.Header, f.cfg.SecretHeaders, f.cfg.UnsafeLogging))

	if res, ok := f.fromCache(ctx, key, wantStructured); ok {
		return res, nil
	}

	var res *Result
	err := f.policy.Do(ctx, func(attempt int) error {
		r, err := f.attempt(ctx, f.clientFor(ep.Session), target, ep.Header, wantStructured)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		f.logFailure(ctx, err)
		return nil, err
	}

	if f.cache != nil {
		ent := CacheEntry{
			Status:      res.Status,
			ContentType: res.ContentType,
			Body:        res.Body,
			FinalURL:    res.FinalURL,
			CreatedAt:   f.now(),
			OK:          true,
		}
		if err := f.cache.Put(key, ent); err != nil {
			f.log.WarnContext(ctx, "failed to store response in cache", "url", target, "error", err)
		}
	}

	return res, nil
}

func (f *Fetcher) fromCache(ctx context.Context, key string, wantStructured bool) (*Result, bool) {
	if f.cache == nil {
		return nil, false
	}

	ent, ok := f.cache.Get(key)
	if !ok {
		return nil, false
	}

	if wantStructured && (!IsJSON(ent.ContentType) || !json.Valid(ent.Body)) {
		f.log.DebugContext(ctx, "cached response is not JSON, fetching live", "url", ent.FinalURL)
		return nil, false
	}

	f.log.DebugContext(ctx, "response cache hit", "url", ent.FinalURL)

	return &Result{
		Body:        ent.Body,
		ContentType: ent.ContentType,
		FinalURL:    ent.FinalURL,
		Status:      ent.Status,
		Cached:      true,
	}, true
}

// clientFor returns the client for a cookie session. Session clients share
// the base client's transport and keep their cookies for the life of the
// Fetcher.
func (f *Fetcher) clientFor(session string) *http.Client {
	if session == "" {
		return f.client
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.sessions[session]; ok {
		return c
	}

	c := &http.Client{
		Transport:     f.client.Transport,
		CheckRedirect: f.client.CheckRedirect,
		Timeout:       f.client.Timeout,
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		f.log.Warn("failed to create cookie jar, using a stateless client", "session", session, "error", err)
	} else {
		c.Jar = jar
	}

	f.sessions[session] = c

	return c
}

func (f *Fetcher) attempt(ctx context.Context, client *http.Client, target string, header map[string]string, wantStructured bool) (*Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Kind: KindBadRequest, URL: target, Err: err}
	}

	req.Header.Set("User-Agent", f.cfg.UserAgent)
	if wantStructured {
		req.Header.Set("Accept", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransient, URL: target, Err: err}
	}
	defer resp.Body.Close()

	switch codes.Classify(resp.StatusCode) {
	case codes.Authorization:
		return nil, statusError(KindAuthorization, target, resp.StatusCode)
	case codes.BadRequest:
		return nil, statusError(KindBadRequest, target, resp.StatusCode)
	case codes.RateLimited:
		return nil, statusError(KindRateLimit, target, resp.StatusCode)
	case codes.Retryable:
		return nil, statusError(KindTransient, target, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Status: resp.StatusCode, URL: target, Err: err}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &Error{Kind: KindEmpty, Status: resp.StatusCode, URL: target}
	}

	contentType := resp.Header.Get("Content-Type")
	if wantStructured {
		if !IsJSON(contentType) {
			return nil, &Error{
				Kind:   KindContentType,
				Status: resp.StatusCode,
				URL:    target,
				Err:    fmt.Errorf("got content type %q", contentType),
			}
		}
		if !json.Valid(body) {
			return nil, &Error{Kind: KindMalformed, Status: resp.StatusCode, URL: target}
		}
	}

	return &Result{
		Body:        body,
		ContentType: contentType,
		FinalURL:    resp.Request.URL.String(),
		Status:      resp.StatusCode,
	}, nil
}

func statusError(kind Kind, target string, status int) *Error {
	return &Error{Kind: kind, Status: status, URL: target, Err: errors.New(codes.Describe(status))}
}

func (f *Fetcher) logFailure(ctx context.Context, err error) {
	var fe *Error
	if !errors.As(err, &fe) {
		f.log.ErrorContext(ctx, "fetch failed", "error", err)
		return
	}

	switch fe.Kind {
	case KindAuthorization:
		f.log.ErrorContext(ctx, "authorization failed, check credentials", "url", fe.URL, "status", fe.Status)
	case KindTransient, KindRateLimit:
		f.log.ErrorContext(ctx, "giving up after retries", "url", fe.URL, "kind", fe.Kind.String(), "error", fe.Err)
	default:
		f.log.WarnContext(ctx, "no data", "url", fe.URL, "kind", fe.Kind.String(), "status", fe.Status)
	}
}
