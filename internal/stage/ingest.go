package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Norgate-AV/lakefetch/internal/audit"
	"github.com/Norgate-AV/lakefetch/internal/cache"
	"github.com/Norgate-AV/lakefetch/internal/dataset"
	"github.com/Norgate-AV/lakefetch/internal/digest"
	"github.com/Norgate-AV/lakefetch/internal/fetch"
	"github.com/Norgate-AV/lakefetch/internal/memo"
)

var errNoData = errors.New("no data returned")

// Dataset is one bronze artifact
type Dataset struct {
	Name      string
	Endpoint  fetch.Endpoint
	Key       string
	Paginated bool

	// Check validates the payload and counts its records. Nil accepts any JSON.
	Check dataset.Check
}

func (ds Dataset) check(body []byte) (int, error) {
	if ds.Check == nil {
		return dataset.CountRecords(body)
	}
	return ds.Check(body)
}

// Ingest lands one dataset in bronze storage
func (rn *Runner) Ingest(ctx context.Context, ds Dataset) (Outcome, error) {
	m := rn.memos.For(ScopeBronze)

	if v, ok := m.Skipped(ds.Key); ok {
		rn.log.InfoContext(ctx, "recently skipped", "dataset", ds.Name, "scope", m.Scope(), "status", v.Status)
		return Skipped, nil
	}

	if ds.Paginated {
		return rn.ingestPaginated(ctx, ds, m)
	}

	return rn.ingestSingle(ctx, ds, m)
}

func (rn *Runner) ingestSingle(ctx context.Context, ds Dataset, m *memo.Memo) (Outcome, error) {
	if rn.fastSkip {
		exists, err := rn.store.Exists(ctx, ds.Key)
		if err != nil {
			rn.log.WarnContext(ctx, "failed to check output, fetching", "dataset", ds.Name, "error", err)
		} else if exists {
			m.Set(ds.Key, memo.StatusSkipped)
			rn.log.InfoContext(ctx, "output exists, skipping", "dataset", ds.Name, "key", ds.Key)
			rn.record(ctx, rn.bronzeEntry(ds, Skipped, "output exists"))
			return Skipped, nil
		}
	}

	res, err := rn.fetcher.Fetch(ctx, ds.Endpoint, true)
	if err != nil {
		return rn.failBronze(ctx, ds, err)
	}

	return rn.commitBronze(ctx, ds, m, res.Body, 0)
}

func (rn *Runner) ingestPaginated(ctx context.Context, ds Dataset, m *memo.Memo) (Outcome, error) {
	rec, err := rn.cache.Load(ctx, cache.RecordKey(ds.Key))
	if err != nil {
		rn.log.WarnContext(ctx, "unreadable build record, fetching all pages", "dataset", ds.Name, "error", err)
		rec = nil
	}

	if rec != nil && rec.Completed && rec.LastPage > 0 && rn.outputExists(ctx, ds) {
		outcome, handled, err := rn.resume(ctx, ds, m, rec)
		if handled {
			return outcome, err
		}
	}

	last, err := rn.pager.FindLastPage(ctx, ds.Endpoint, nil)
	if err != nil {
		return rn.failBronze(ctx, ds, err)
	}
	if last == 0 {
		return rn.failBronze(ctx, ds, errNoData)
	}

	var items []json.RawMessage
	pages, err := rn.pager.Walk(ctx, ds.Endpoint, nil, 1, last, func(_ int, res *fetch.Result) error {
		var aerr error
		items, aerr = appendItems(items, res.Body)
		return aerr
	})
	if err != nil {
		return rn.failBronze(ctx, ds, err)
	}
	if pages == 0 {
		return rn.failBronze(ctx, ds, errNoData)
	}
	if pages < last {
		rn.log.WarnContext(ctx, "pages ended before the located last page",
			"dataset", ds.Name, "located", last, "fetched", pages)
	}

	body, err := encodeItems(items)
	if err != nil {
		return rn.failBronze(ctx, ds, err)
	}

	return rn.commitBronze(ctx, ds, m, body, pages)
}

// outputExists reports whether the bronze object is still stored. A record
// without its output can never be resumed.
func (rn *Runner) outputExists(ctx context.Context, ds Dataset) bool {
	exists, err := rn.store.Exists(ctx, ds.Key)
	if err != nil {
		rn.log.WarnContext(ctx, "failed to check output, fetching all pages", "dataset", ds.Name, "error", err)
		return false
	}
	if !exists {
		rn.log.InfoContext(ctx, "output missing, fetching all pages", "dataset", ds.Name, "key", ds.Key)
	}

	return exists
}

// resume probes the page after the last recorded one. When it is empty the
// dataset is up to date. Otherwise the new pages are appended to the
// stored array. handled is false when the stored array cannot be extended
// and the caller must fetch every page again.
func (rn *Runner) resume(ctx context.Context, ds Dataset, m *memo.Memo, rec *cache.BuildRecord) (outcome Outcome, handled bool, err error) {
	next := rec.LastPage + 1

	var res *fetch.Result
	if next <= rn.pager.MaxPages() {
		res, err = rn.pager.Page(ctx, ds.Endpoint, nil, next)
		if err != nil {
			outcome, err = rn.failBronze(ctx, ds, err)
			return outcome, true, err
		}
	}

	if res == nil {
		m.Set(ds.Key, memo.StatusUpToDate)
		rn.log.InfoContext(ctx, "up to date, no new pages", "dataset", ds.Name, "last_page", rec.LastPage)

		e := rn.bronzeEntry(ds, Skipped, "up to date, no new pages")
		e.Pages = rec.LastPage
		e.Records = rec.RecordCount
		rn.record(ctx, e)

		return Skipped, true, nil
	}

	existing, err := rn.store.Get(ctx, ds.Key)
	var items []json.RawMessage
	if err == nil {
		err = json.Unmarshal(existing, &items)
	}
	if err != nil {
		rn.log.WarnContext(ctx, "cannot extend stored output, fetching all pages", "dataset", ds.Name, "error", err)
		return 0, false, nil
	}

	before := len(items)
	if items, err = appendItems(items, res.Body); err != nil {
		outcome, err = rn.failBronze(ctx, ds, err)
		return outcome, true, err
	}

	pages, err := rn.pager.Walk(ctx, ds.Endpoint, nil, next+1, rn.pager.MaxPages(), func(_ int, res *fetch.Result) error {
		var aerr error
		items, aerr = appendItems(items, res.Body)
		return aerr
	})
	if err != nil {
		outcome, err = rn.failBronze(ctx, ds, err)
		return outcome, true, err
	}

	last := next + pages
	rn.log.InfoContext(ctx, "fetched new pages",
		"dataset", ds.Name,
		"from", next,
		"to", last,
		"new_records", len(items)-before)

	body, err := encodeItems(items)
	if err != nil {
		outcome, err = rn.failBronze(ctx, ds, err)
		return outcome, true, err
	}

	outcome, err = rn.commitBronze(ctx, ds, m, body, last)
	return outcome, true, err
}

// commitBronze validates body, writes it unless identical to the stored
// object and replaces the build record
func (rn *Runner) commitBronze(ctx context.Context, ds Dataset, m *memo.Memo, body []byte, pages int) (Outcome, error) {
	count, err := ds.check(body)
	if err != nil {
		return rn.failBronze(ctx, ds, fmt.Errorf("invalid payload: %w", err))
	}

	written, err := cache.WriteArtifact(ctx, rn.store, ds.Key, body, "application/json")
	if err != nil {
		return rn.failBronze(ctx, ds, err)
	}

	recordKey := cache.RecordKey(ds.Key)
	if written || !rn.recordCurrent(ctx, recordKey, count, pages) {
		rec := &cache.BuildRecord{RecordCount: count, LastPage: pages}
		if err := rn.cache.CommitRecord(ctx, recordKey, rec); err != nil {
			return rn.failBronze(ctx, ds, err)
		}
	}

	outcome, reason := Committed, ""
	if written {
		m.Forget(ds.Key)
	} else {
		outcome, reason = Skipped, "content unchanged"
		m.Set(ds.Key, memo.StatusSkipped)
	}

	rn.log.InfoContext(ctx, "ingested",
		"dataset", ds.Name,
		"key", ds.Key,
		"outcome", outcome,
		"records", count,
		"pages", pages)

	e := rn.bronzeEntry(ds, outcome, reason)
	e.Records = count
	e.Pages = pages
	rn.record(ctx, e)

	return outcome, nil
}

// recordCurrent reports whether the stored record already describes an
// unchanged output, so committing again would only move CompletedAt
func (rn *Runner) recordCurrent(ctx context.Context, recordKey string, count, pages int) bool {
	rec, err := rn.cache.Load(ctx, recordKey)
	if err != nil || rec == nil {
		return false
	}

	return rec.Completed && rec.RecordCount == count && rec.LastPage == pages
}

func (rn *Runner) failBronze(ctx context.Context, ds Dataset, err error) (Outcome, error) {
	rn.log.ErrorContext(ctx, "ingestion failed", "dataset", ds.Name, "error", err)

	e := rn.bronzeEntry(ds, Failed, failureReason(err))
	e.Error = err.Error()
	rn.record(ctx, e)

	return Failed, fmt.Errorf("%s: %w", ds.Name, err)
}

func (rn *Runner) bronzeEntry(ds Dataset, o Outcome, reason string) audit.Entry {
	return audit.Entry{
		Dataset: ds.Name,
		Stage:   ScopeBronze,
		URL:     ds.Endpoint.URL,
		Params:  ds.Endpoint.Params,
		Outcome: o.audit(),
		Reason:  reason,
		Key:     ds.Key,
	}
}

func failureReason(err error) string {
	if k := fetch.KindOf(err); k != 0 {
		return k.String()
	}
	if errors.Is(err, errNoData) {
		return errNoData.Error()
	}
	return "error"
}

// appendItems adds the elements of a JSON array page, or the page itself
// when it is a single object
func appendItems(items []json.RawMessage, page []byte) ([]json.RawMessage, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(page, &elems); err == nil {
		return append(items, elems...), nil
	}

	if !json.Valid(page) {
		return items, errors.New("page is not valid JSON")
	}

	return append(items, json.RawMessage(page)), nil
}

func encodeItems(items []json.RawMessage) ([]byte, error) {
	if items == nil {
		items = []json.RawMessage{}
	}

	_, body, err := digest.JSON(items)
	if err != nil {
		return nil, fmt.Errorf("failed to merge pages: %w", err)
	}

	return body, nil
}
