package stage

import (
	"context"
	"fmt"
)

// Job is one unit of work for RunRounds
type Job struct {
	Name string
	Run  func(ctx context.Context) (Outcome, error)
}

// IngestJob wraps Ingest for ds
func (rn *Runner) IngestJob(ds Dataset) Job {
	return Job{
		Name: ds.Name,
		Run:  func(ctx context.Context) (Outcome, error) { return rn.Ingest(ctx, ds) },
	}
}

// TransformJob wraps Transform for t
func (rn *Runner) TransformJob(t Transform) Job {
	return Job{
		Name: t.Name,
		Run:  func(ctx context.Context) (Outcome, error) { return rn.Transform(ctx, t) },
	}
}

// Failure is a job that still failed after the last round
type Failure struct {
	Name string
	Err  error
}

// Summary counts the final outcome of every job
type Summary struct {
	Committed []string
	Skipped   []string
	Failed    []Failure
	Rounds    int
}

// OK reports whether every job ended committed or skipped
func (s Summary) OK() bool {
	return len(s.Failed) == 0
}

// RunRounds runs jobs sequentially in order, then retries the failed ones
// for up to extraRounds more rounds. A fatal error stops immediately and is
// returned together with the partial summary.
func (rn *Runner) RunRounds(ctx context.Context, jobs []Job, extraRounds int) (Summary, error) {
	var summary Summary

	pending := jobs
	errs := map[string]error{}

	for round := 1; round <= extraRounds+1 && len(pending) > 0; round++ {
		if round > 1 {
			rn.log.InfoContext(ctx, "retrying failed jobs", "round", round, "jobs", len(pending))
		}
		summary.Rounds = round

		var failed []Job
		for _, job := range pending {
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			outcome, err := job.Run(ctx)
			if err != nil && IsFatal(err) {
				summary.Failed = append(summary.Failed, Failure{Name: job.Name, Err: err})
				return summary, fmt.Errorf("run stopped at %s: %w", job.Name, err)
			}

			switch {
			case err == nil && outcome == Committed:
				summary.Committed = append(summary.Committed, job.Name)
			case err == nil && outcome == Skipped:
				summary.Skipped = append(summary.Skipped, job.Name)
			default:
				if err == nil {
					err = fmt.Errorf("%s: %s", job.Name, outcome)
				}
				errs[job.Name] = err
				failed = append(failed, job)
			}
		}

		pending = failed
	}

	for _, job := range pending {
		summary.Failed = append(summary.Failed, Failure{Name: job.Name, Err: errs[job.Name]})
	}

	rn.log.InfoContext(ctx, "run finished",
		"committed", len(summary.Committed),
		"skipped", len(summary.Skipped),
		"failed", len(summary.Failed),
		"rounds", summary.Rounds)

	return summary, nil
}
