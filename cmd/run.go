package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/lakefetch/internal/stage"
)

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Ingest every dataset, then run every transform",
	RunE:         runAll,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runAll(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cat, err := a.loadCatalog()
	if err != nil {
		return err
	}

	datasets, err := ingestDatasets(cat, a.secrets, nil)
	if err != nil {
		return err
	}

	transforms, err := toTransforms(cat.Transforms)
	if err != nil {
		return err
	}

	e, err := a.newEngine(cat)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	ingest := make([]stage.Job, 0, len(datasets))
	for _, ds := range datasets {
		ingest = append(ingest, e.runner.IngestJob(ds))
	}

	fmt.Fprintln(out, "bronze:")
	bronze, err := e.runner.RunRounds(cmd.Context(), ingest, a.cfg.Run.RetryRounds)
	printSummary(out, bronze)
	if err != nil {
		return err
	}

	// Failed datasets keep their previous bronze objects, so transforms
	// still run over whatever is stored
	build := make([]stage.Job, 0, len(transforms))
	for _, t := range transforms {
		build = append(build, e.runner.TransformJob(t))
	}

	fmt.Fprintln(out, "transforms:")
	built, err := e.runner.RunRounds(cmd.Context(), build, a.cfg.Run.RetryRounds)
	printSummary(out, built)
	if err != nil {
		return err
	}

	if failed := len(bronze.Failed) + len(built.Failed); failed > 0 {
		return fmt.Errorf("%d job(s) failed", failed)
	}

	return nil
}
