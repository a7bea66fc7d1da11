package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/zbigniewsiwiec/slack-intel/internal/cache"
	"github.com/zbigniewsiwiec/slack-intel/internal/query"
	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
)

type queryOptions struct {
	sql         string
	interactive bool
	format      string
	limit       int
	cachePath   string
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run SQL over the Parquet dataset with embedded DuckDB",
		Long: `Run SQL over the Parquet dataset with embedded DuckDB.

Parquet files are addressed with glob paths, for example:

  slack-intel query -q "SELECT user_name, count(*) FROM 'cache/messages/**/*.parquet' GROUP BY 1 ORDER BY 2 DESC"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), &opts)
		},
	}
	cmd.Flags().StringVarP(&opts.sql, "query", "q", "", "SQL statement to run")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "start an interactive SQL prompt")
	cmd.Flags().StringVar(&opts.format, "format", "table", "output format: table, json or csv")
	cmd.Flags().IntVar(&opts.limit, "limit", 100, "row limit appended to statements without one (0 disables)")
	cmd.Flags().StringVar(&opts.cachePath, "cache-path", defaultCachePath, "dataset root directory")
	return cmd
}

func runQuery(ctx context.Context, opts *queryOptions) error {
	switch opts.format {
	case "table", "json", "csv":
	default:
		return apierror.Newf(apierror.KindConfig, "unknown --format %q, expected table, json or csv", opts.format)
	}
	if opts.sql == "" && !opts.interactive {
		return apierror.Newf(apierror.KindConfig, "nothing to do: pass --query or --interactive")
	}

	if !dirExists(filepath.Join(opts.cachePath, cache.MessagesDir)) {
		fmt.Printf("No cached data under %s\n", opts.cachePath)
		fmt.Println("💡 Try: slack-intel cache --channel <name>")
		return nil
	}

	eng, err := query.Open()
	if err != nil {
		return err
	}
	defer eng.Close()

	if opts.sql != "" {
		res, err := eng.Run(ctx, opts.sql, opts.limit)
		if err != nil {
			return err
		}
		if err := renderResult(res, opts.format); err != nil {
			return err
		}
	}

	if opts.interactive {
		return interactiveLoop(ctx, eng, opts)
	}
	return nil
}

// interactiveLoop reads one statement per line. Statement errors are printed
// and the prompt continues; only I/O errors end the loop.
func interactiveLoop(ctx context.Context, eng *query.Engine, opts *queryOptions) error {
	fmt.Printf("Interactive SQL over %s. Type 'exit' to leave.\n", opts.cachePath)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for {
		fmt.Print("duckdb> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit", `\q`:
			return nil
		}

		res, err := eng.Run(ctx, line, opts.limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if err := renderResult(res, opts.format); err != nil {
			return err
		}
	}
}

func renderResult(res *query.Result, format string) error {
	switch format {
	case "json":
		out := make([]map[string]string, 0, len(res.Rows))
		for _, row := range res.Rows {
			m := make(map[string]string, len(res.Columns))
			for i, col := range res.Columns {
				m[col] = row[i]
			}
			out = append(out, m)
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return apierror.New(apierror.KindFatal, err)
		}
		fmt.Println(string(data))

	case "csv":
		w := csv.NewWriter(os.Stdout)
		if err := w.Write(res.Columns); err != nil {
			return apierror.New(apierror.KindIO, err)
		}
		if err := w.WriteAll(res.Rows); err != nil {
			return apierror.New(apierror.KindIO, err)
		}
		w.Flush()

	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader(res.Columns)
		table.AppendBulk(res.Rows)
		table.Render()
		fmt.Printf("%d row(s)\n", len(res.Rows))
	}
	return nil
}

func dirExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
