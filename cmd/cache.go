package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/lakefetch/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage build records and the HTTP cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats [prefix]",
	Short:        "List build records and HTTP cache usage",
	RunE:         runCacheStats,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Drop expired HTTP responses, or all of them with --all",
	RunE:         runCacheClear,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

var cacheInvalidateCmd = &cobra.Command{
	Use:          "invalidate <output-or-record-key>...",
	Short:        "Force the next run to rebuild an artifact",
	RunE:         runCacheInvalidate,
	SilenceUsage: true,
	Args:         cobra.MinimumNArgs(1),
}

func init() {
	cacheClearCmd.Flags().Bool("all", false, "Drop every cached response, not only expired ones")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}

	records, err := a.cache.Records(cmd.Context(), prefix)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RECORD\tCOMPLETED\tRECORDS\tLAST PAGE\tCOMPLETED AT")
	for _, r := range records {
		if r.Err != nil {
			fmt.Fprintf(w, "%s\tunreadable\t-\t-\t%v\n", r.Key, r.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%t\t%d\t%d\t%s\n",
			r.Key, r.Record.Completed, r.Record.RecordCount, r.Record.LastPage,
			r.Record.CompletedAt.Format(time.RFC3339))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if a.httpCache == nil {
		fmt.Fprintln(out, "http cache: disabled")
		return nil
	}

	stats, err := a.httpCache.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "http cache: %d entries (%d expired), %d bytes\n", stats.Entries, stats.Expired, stats.Bytes)

	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.httpCache == nil {
		return fmt.Errorf("http cache is disabled")
	}

	all, _ := cmd.Flags().GetBool("all")

	n, err := a.httpCache.Purge(!all)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached response(s)\n", n)
	return nil
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, key := range args {
		recordKey := key
		if !cache.IsRecordKey(key) {
			recordKey = cache.RecordKey(key)
		}

		ok, err := a.cache.Invalidate(cmd.Context(), recordKey)
		if err != nil {
			return err
		}

		if ok {
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", recordKey)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "no build record at %s\n", recordKey)
		}
	}

	return nil
}
