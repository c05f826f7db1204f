package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/lakefetch/internal/stage"
)

var transformCmd = &cobra.Command{
	Use:          "transform [name...]",
	Short:        "Build silver and gold tables",
	Long:         `Rebuild every catalog transform, or only the named ones, whose inputs changed since the last build.`,
	RunE:         runTransform,
	SilenceUsage: true,
}

func runTransform(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cat, err := a.loadCatalog()
	if err != nil {
		return err
	}

	selected, err := cat.FindTransforms(args...)
	if err != nil {
		return err
	}

	transforms, err := toTransforms(selected)
	if err != nil {
		return err
	}

	e, err := a.newEngine(cat)
	if err != nil {
		return err
	}

	jobs := make([]stage.Job, 0, len(transforms))
	for _, t := range transforms {
		jobs = append(jobs, e.runner.TransformJob(t))
	}

	summary, err := e.runner.RunRounds(cmd.Context(), jobs, a.cfg.Run.RetryRounds)
	printSummary(cmd.OutOrStdout(), summary)

	return summaryError(summary, err)
}
