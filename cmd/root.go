package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/lakefetch/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "lakefetch",
	Short: "Incremental public data ingestion",
	Long: `Fetch public datasets into bronze object storage and build silver and
gold tables from them, redoing only the work whose inputs changed.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().String("config", "", "Config file (merged over global and local config)")
	rootCmd.PersistentFlags().String("catalog", "", "Dataset catalog file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable the HTTP response cache")
	rootCmd.PersistentFlags().String("store", "", "Blob store driver (bolt, s3 or memory)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(cacheCmd)
}
