// slack-intel caches Slack channel history as partitioned Parquet files and
// renders threaded views, stats and ad-hoc SQL over the cache.
package main

import (
	"fmt"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
	util_log "github.com/zbigniewsiwiec/slack-intel/pkg/util/log"
)

const defaultCachePath = "cache"

var logger kitlog.Logger = kitlog.NewNopLogger()

func main() {
	os.Exit(run())
}

func run() int {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "slack-intel",
		Short:         "Cache Slack channels as Parquet and explore them offline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = util_log.InitLogger(logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	// flag and usage mistakes are user errors, not runtime failures
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return apierror.New(apierror.KindConfig, err)
	})

	rootCmd.AddCommand(newCacheCmd(), newViewCmd(), newStatsCmd(), newQueryCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "slack-intel: %v\n", err)
		if apierror.IsConfig(err) {
			return 1
		}
		return 2
	}
	return 0
}
