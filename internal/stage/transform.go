package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Norgate-AV/lakefetch/internal/audit"
	"github.com/Norgate-AV/lakefetch/internal/blob"
	"github.com/Norgate-AV/lakefetch/internal/cache"
	"github.com/Norgate-AV/lakefetch/internal/dataset"
	"github.com/Norgate-AV/lakefetch/internal/memo"
)

// Transform produces one silver or gold artifact from declared inputs
type Transform struct {
	Name string
	// Stage is silver or gold and selects the memo scope
	Stage  string
	Output string
	// Inputs carry Key and Name. Bodies are read at run time.
	Inputs  []dataset.Input
	Build   dataset.Builder
	Options map[string]string
}

func (t Transform) inputKeys() []string {
	keys := make([]string, len(t.Inputs))
	for i, in := range t.Inputs {
		keys[i] = in.Key
	}
	return keys
}

func (t Transform) stage() string {
	if t.Stage == "" {
		return ScopeSilver
	}
	return t.Stage
}

// Transform rebuilds the output of t unless the build cache says every
// input is unchanged
func (rn *Runner) Transform(ctx context.Context, t Transform) (Outcome, error) {
	m := rn.memos.For(t.stage())
	recordKey := cache.RecordKey(t.Output)
	keys := t.inputKeys()

	if v, ok := m.Skipped(t.Output); ok {
		rn.log.InfoContext(ctx, "recently skipped", "transform", t.Name, "scope", m.Scope(), "status", v.Status)
		return Skipped, nil
	}

	d := rn.cache.Check(ctx, t.Output, recordKey, keys)
	if d.Skip {
		m.Set(t.Output, memo.StatusSkipped)
		rn.log.InfoContext(ctx, "skipping", "transform", t.Name, "reason", d.Reason)
		rn.record(ctx, rn.transformEntry(t, Skipped, d.Reason))
		return Skipped, nil
	}

	m.Forget(t.Output)
	rn.log.InfoContext(ctx, "building", "transform", t.Name, "reason", d.Reason)

	inputs := make([]dataset.Input, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		body, err := rn.store.Get(ctx, in.Key)
		if errors.Is(err, blob.ErrNotFound) {
			return rn.failTransform(ctx, t, fmt.Errorf("%s: %w", in.Key, ErrInputMissing))
		}
		if err != nil {
			return rn.failTransform(ctx, t, fmt.Errorf("failed to read %s: %w", in.Key, err))
		}

		in.Body = body
		inputs = append(inputs, in)
	}

	out, err := t.Build(inputs, t.Options)
	if err != nil {
		return rn.failTransform(ctx, t, err)
	}

	// Without a successful write the record must not be committed
	if _, err := cache.WriteArtifact(ctx, rn.store, t.Output, out.Body, "application/json"); err != nil {
		return rn.failTransform(ctx, t, err)
	}

	if _, err := rn.cache.Commit(ctx, recordKey, keys, out.Records); err != nil {
		return rn.failTransform(ctx, t, err)
	}

	m.Forget(t.Output)

	rn.log.InfoContext(ctx, "built",
		"transform", t.Name,
		"output", t.Output,
		"records", out.Records,
		"hash", out.Hash)

	e := rn.transformEntry(t, Committed, d.Reason)
	e.Records = out.Records
	rn.record(ctx, e)

	return Committed, nil
}

func (rn *Runner) failTransform(ctx context.Context, t Transform, err error) (Outcome, error) {
	rn.log.ErrorContext(ctx, "transform failed", "transform", t.Name, "error", err)

	e := rn.transformEntry(t, Failed, "error")
	if errors.Is(err, ErrInputMissing) {
		e.Reason = ErrInputMissing.Error()
	}
	e.Error = err.Error()
	rn.record(ctx, e)

	return Failed, fmt.Errorf("%s: %w", t.Name, err)
}

func (rn *Runner) transformEntry(t Transform, o Outcome, reason string) audit.Entry {
	return audit.Entry{
		Dataset: t.Name,
		Stage:   t.stage(),
		Outcome: o.audit(),
		Reason:  reason,
		Key:     t.Output,
	}
}
