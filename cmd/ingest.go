package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/lakefetch/internal/config"
	"github.com/Norgate-AV/lakefetch/internal/stage"
)

var ingestCmd = &cobra.Command{
	Use:          "ingest [source|source/dataset...]",
	Short:        "Fetch datasets into bronze storage",
	Long:         `Fetch every catalog dataset, or only the selected sources, into bronze storage.`,
	RunE:         runIngest,
	SilenceUsage: true,
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cat, err := a.loadCatalog()
	if err != nil {
		return err
	}

	// Resolve credentials before any request is made
	datasets, err := ingestDatasets(cat, a.secrets, args)
	if err != nil {
		return err
	}

	e, err := a.newEngine(cat)
	if err != nil {
		return err
	}

	jobs := make([]stage.Job, 0, len(datasets))
	for _, ds := range datasets {
		jobs = append(jobs, e.runner.IngestJob(ds))
	}

	summary, err := e.runner.RunRounds(cmd.Context(), jobs, a.cfg.Run.RetryRounds)
	printSummary(cmd.OutOrStdout(), summary)

	return summaryError(summary, err)
}

func ingestDatasets(cat *config.Catalog, secrets config.Secrets, selectors []string) ([]stage.Dataset, error) {
	jobs, err := cat.Jobs(selectors...)
	if err != nil {
		return nil, err
	}

	return toDatasets(jobs, secrets)
}

func summaryError(s stage.Summary, err error) error {
	if err != nil {
		return err
	}
	if !s.OK() {
		return fmt.Errorf("%d job(s) failed", len(s.Failed))
	}
	return nil
}
