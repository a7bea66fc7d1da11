package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/zbigniewsiwiec/slack-intel/internal/cache"
	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
)

type statsOptions struct {
	cachePath string
	format    string
}

func newStatsCmd() *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the cached dataset's partitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(&opts)
		},
	}
	cmd.Flags().StringVar(&opts.cachePath, "cache-path", defaultCachePath, "dataset root directory")
	cmd.Flags().StringVar(&opts.format, "format", "table", "output format: table or json")
	return cmd
}

func runStats(opts *statsOptions) error {
	if opts.format != "table" && opts.format != "json" {
		return apierror.Newf(apierror.KindConfig, "unknown --format %q, expected table or json", opts.format)
	}

	reader := cache.NewReader(opts.cachePath, logger)
	info, err := reader.PartitionInfo()
	if err != nil {
		return err
	}

	if len(info.Partitions) == 0 {
		fmt.Printf("No cached data under %s\n", opts.cachePath)
		fmt.Println("💡 Try: slack-intel cache --channel <name>")
		return nil
	}

	if opts.format == "json" {
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return apierror.New(apierror.KindFatal, err)
		}
		fmt.Println(string(out))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Path", "Entity", "Rows", "Size"})
	for _, p := range info.Partitions {
		table.Append([]string{p.Path, p.Entity, strconv.FormatInt(p.Rows, 10), humanBytes(p.Bytes)})
	}
	table.SetFooter([]string{"", "total", strconv.FormatInt(info.TotalRows, 10), humanBytes(info.TotalBytes)})
	table.Render()
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
