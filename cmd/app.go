package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/lakefetch/internal/audit"
	"github.com/Norgate-AV/lakefetch/internal/blob"
	"github.com/Norgate-AV/lakefetch/internal/cache"
	"github.com/Norgate-AV/lakefetch/internal/config"
	"github.com/Norgate-AV/lakefetch/internal/dataset"
	"github.com/Norgate-AV/lakefetch/internal/fetch"
	"github.com/Norgate-AV/lakefetch/internal/memo"
	"github.com/Norgate-AV/lakefetch/internal/pager"
	"github.com/Norgate-AV/lakefetch/internal/stage"
)

// app holds the components one command works with
type app struct {
	cfg       *config.Config
	secrets   config.Secrets
	log       *slog.Logger
	store     blob.Store
	cache     *cache.Cache
	httpCache *fetch.LevelCache
	closers   []func() error
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newApp loads configuration and opens the stores
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.NewLoader().Load(cmd)
	if err != nil {
		return nil, err
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		secrets: secrets,
		log:     newLogger(cmd.ErrOrStderr(), cfg.Verbose),
	}

	store, closer, err := openStore(cmd.Context(), cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closer)
	a.cache = cache.New(store, cache.WithLogger(a.log))

	if cfg.HTTP.Cache {
		hc, err := fetch.OpenLevelCache(cfg.HTTP.CacheDir, cfg.HTTP.CacheTTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.httpCache = hc
		a.closers = append(a.closers, hc.Close)
	}

	return a, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (blob.Store, func() error, error) {
	switch cfg.Driver {
	case "bolt":
		s, err := blob.OpenBolt(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case "s3":
		client, err := blob.NewClient(cfg.URL)
		if err != nil {
			return nil, nil, err
		}

		s := blob.NewS3Store(client, cfg.Bucket)
		if err := s.Setup(ctx); err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil

	case "memory":
		return blob.NewMemory(), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("invalid store driver: %s", cfg.Driver)
	}
}

// Close releases everything newApp and newEngine opened, newest first
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("failed to close", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) loadCatalog() (*config.Catalog, error) {
	return config.LoadCatalog(a.cfg.Catalog)
}

// engine is the network side of a run
type engine struct {
	fetcher *fetch.Fetcher
	pager   *pager.Pager
	runner  *stage.Runner
}

func (a *app) newEngine(cat *config.Catalog) (*engine, error) {
	sink, err := audit.Open(a.cfg.Audit.Driver, a.cfg.Audit.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, sink.Close)

	opts := []fetch.Option{fetch.WithLogger(a.log)}
	if a.httpCache != nil {
		opts = append(opts, fetch.WithCache(a.httpCache))
	}

	f := fetch.New(fetch.Config{
		MaxRetries:    a.cfg.HTTP.MaxRetries,
		Timeout:       a.cfg.HTTP.Timeout,
		UserAgent:     a.cfg.HTTP.UserAgent,
		SecretHeaders: secretHeaders(cat),
		UnsafeLogging: a.secrets.UnsafeHTTPLogging,
	}, opts...)

	p := pager.New(f, pager.Config{
		PageParam: a.cfg.Pagination.PageParam,
		MaxPages:  a.cfg.Pagination.MaxPages,
		Delay:     a.cfg.Pagination.Delay,
	}, pager.WithLogger(a.log))

	r := stage.New(f, p, a.store, a.cache,
		stage.WithMemo(memo.NewRegistry(a.cfg.Skip.TTL)),
		stage.WithAudit(sink),
		stage.WithLogger(a.log),
		stage.WithFastSkip(a.cfg.Skip.FastIfExists))

	return &engine{fetcher: f, pager: p, runner: r}, nil
}

func secretHeaders(cat *config.Catalog) []string {
	var headers []string
	for _, s := range cat.Sources {
		if s.Auth != nil {
			headers = append(headers, s.Auth.Header)
		}
	}
	return headers
}

// toDatasets resolves credentials and payload checks for catalog jobs.
// A job that needs a missing secret fails the whole conversion.
func toDatasets(jobs []config.Job, secrets config.Secrets) ([]stage.Dataset, error) {
	out := make([]stage.Dataset, 0, len(jobs))

	for _, job := range jobs {
		var header map[string]string
		if job.Auth != nil {
			key, err := secrets.Key(job.Auth.Env)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", job.ID(), err)
			}
			header = map[string]string{job.Auth.Header: key}
		}

		check, err := dataset.LookupCheck(job.Check)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", job.ID(), err)
		}

		out = append(out, stage.Dataset{
			Name:      job.ID(),
			Endpoint:  job.Endpoint(header),
			Key:       job.Key,
			Paginated: job.Paginated,
			Check:     check,
		})
	}

	return out, nil
}

func toTransforms(ts []config.Transform) ([]stage.Transform, error) {
	out := make([]stage.Transform, 0, len(ts))

	for _, t := range ts {
		build, err := dataset.Lookup(t.Kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name, err)
		}

		inputs := make([]dataset.Input, 0, len(t.Inputs))
		for _, in := range t.Inputs {
			name := in.Name
			if name == "" {
				name = strings.TrimSuffix(path.Base(in.Key), path.Ext(in.Key))
			}
			inputs = append(inputs, dataset.Input{Key: in.Key, Name: name})
		}

		out = append(out, stage.Transform{
			Name:    t.Name,
			Stage:   layerOf(t.Output),
			Output:  t.Output,
			Inputs:  inputs,
			Build:   build,
			Options: t.Options,
		})
	}

	return out, nil
}

// layerOf returns the lake layer an output key belongs to
func layerOf(key string) string {
	first, _, _ := strings.Cut(key, "/")
	switch first {
	case stage.ScopeBronze, stage.ScopeSilver, stage.ScopeGold:
		return first
	default:
		return stage.ScopeSilver
	}
}

func printSummary(w io.Writer, s stage.Summary) {
	fmt.Fprintf(w, "committed: %d  skipped: %d  failed: %d  rounds: %d\n",
		len(s.Committed), len(s.Skipped), len(s.Failed), s.Rounds)

	for _, f := range s.Failed {
		fmt.Fprintf(w, "  failed %s: %v\n", f.Name, f.Err)
	}
}
