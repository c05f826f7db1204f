package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:          "locate <source>/<dataset>",
	Short:        "Print the last page of a paginated dataset",
	RunE:         runLocate,
	SilenceUsage: true,
	Args:         cobra.ExactArgs(1),
}

func runLocate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cat, err := a.loadCatalog()
	if err != nil {
		return err
	}

	datasets, err := ingestDatasets(cat, a.secrets, args)
	if err != nil {
		return err
	}

	e, err := a.newEngine(cat)
	if err != nil {
		return err
	}

	for _, ds := range datasets {
		if !ds.Paginated {
			return fmt.Errorf("%s is not paginated", ds.Name)
		}

		last, err := e.pager.FindLastPage(cmd.Context(), ds.Endpoint, nil)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", ds.Name, last)
	}

	return nil
}
