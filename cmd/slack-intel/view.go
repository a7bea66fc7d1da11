package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/zbigniewsiwiec/slack-intel/internal/cache"
	"github.com/zbigniewsiwiec/slack-intel/internal/view"
	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
	"github.com/zbigniewsiwiec/slack-intel/pkg/window"
)

type viewOptions struct {
	channel         string
	date            string
	startDate       string
	endDate         string
	cachePath       string
	output          string
	resolveMentions bool
}

func newViewCmd() *cobra.Command {
	var opts viewOptions

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Render cached messages as a threaded text view",
		Long: `Render cached messages as a threaded text view.

With --channel, one channel is rendered. Without it, every channel cached
for the selected dates is merged into a single view.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(&opts)
		},
	}
	cmd.Flags().StringVarP(&opts.channel, "channel", "c", "", "channel name or id (default: all cached channels)")
	cmd.Flags().StringVar(&opts.date, "date", "", "single partition date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&opts.startDate, "start-date", "", "range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.endDate, "end-date", "", "range end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.cachePath, "cache-path", defaultCachePath, "dataset root directory")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the view to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.resolveMentions, "resolve-mentions", true, "replace <@USERID> mentions with display names")
	return cmd
}

func runView(opts *viewOptions) error {
	start, end, err := resolveDates(opts.date, opts.startDate, opts.endDate)
	if err != nil {
		return err
	}

	reader := cache.NewReader(opts.cachePath, logger)
	rows, channels, err := loadViewRows(reader, opts.channel, start, end)
	if err != nil {
		return err
	}

	cachedUsers, err := reader.ReadCachedUsers()
	if err != nil {
		level.Warn(logger).Log("msg", "failed to read user cache", "err", err)
		cachedUsers = map[string]cache.UserRow{}
	}
	tickets, err := reader.ReadCachedTickets()
	if err != nil {
		level.Warn(logger).Log("msg", "failed to read ticket cache", "err", err)
		tickets = map[string]cache.TicketRow{}
	}

	dateRange := start
	if end != start {
		dateRange = fmt.Sprintf("%s to %s", start, end)
	}

	formatter := view.NewFormatter()
	formatter.ResolveMentions = opts.resolveMentions
	out := formatter.Format(view.Reconstruct(rows), view.Context{
		ChannelName: opts.channel,
		DateRange:   dateRange,
		Channels:    channels,
	}, cachedUsers, tickets)

	if opts.output != "" {
		if err := os.WriteFile(opts.output, []byte(out+"\n"), 0o644); err != nil {
			return apierror.New(apierror.KindIO, err)
		}
		fmt.Printf("Wrote view to %s\n", opts.output)
	} else {
		fmt.Println(out)
	}

	if len(rows) == 0 {
		hint := "slack-intel cache --channel <name>"
		if opts.channel != "" {
			hint = "slack-intel cache --channel " + opts.channel
		}
		fmt.Printf("\n💡 No cached data for this selection. Try: %s\n", hint)
	}
	return nil
}

// loadViewRows reads one channel over [start, end], or every cached channel
// when channel is empty. The returned channel list is nil in single-channel
// mode and the sorted distinct aliases otherwise.
func loadViewRows(reader *cache.Reader, channel, start, end string) ([]cache.MessageRow, []string, error) {
	if channel != "" {
		rows, err := reader.ReadChannelRange(channel, start, end)
		return rows, nil, err
	}

	days, err := window.DateRange(start, end)
	if err != nil {
		return nil, nil, apierror.New(apierror.KindConfig, err)
	}

	var all []cache.MessageRow
	seen := make(map[string]struct{})
	for _, dt := range days {
		rows, err := reader.ReadAllChannels(dt)
		if err != nil {
			return nil, nil, err
		}
		for _, row := range rows {
			seen[row.ChannelName] = struct{}{}
		}
		all = append(all, rows...)
	}

	channels := make([]string, 0, len(seen))
	for name := range seen {
		channels = append(channels, name)
	}
	sort.Strings(channels)
	return all, channels, nil
}

// resolveDates turns the date flags into an inclusive [start, end] pair.
// --date and --start-date/--end-date are mutually exclusive; no flags at all
// means today.
func resolveDates(date, startDate, endDate string) (string, string, error) {
	switch {
	case date != "" && (startDate != "" || endDate != ""):
		return "", "", apierror.Newf(apierror.KindConfig, "--date cannot be combined with --start-date/--end-date")
	case date != "":
		if _, err := window.ParseDate(date); err != nil {
			return "", "", apierror.Newf(apierror.KindConfig, "invalid --date %q, expected YYYY-MM-DD", date)
		}
		return date, date, nil
	case startDate != "" || endDate != "":
		if startDate == "" || endDate == "" {
			return "", "", apierror.Newf(apierror.KindConfig, "--start-date and --end-date must be set together")
		}
		s, err := window.ParseDate(startDate)
		if err != nil {
			return "", "", apierror.Newf(apierror.KindConfig, "invalid --start-date %q, expected YYYY-MM-DD", startDate)
		}
		e, err := window.ParseDate(endDate)
		if err != nil {
			return "", "", apierror.Newf(apierror.KindConfig, "invalid --end-date %q, expected YYYY-MM-DD", endDate)
		}
		if e.Before(s) {
			return "", "", apierror.Newf(apierror.KindConfig, "--end-date is before --start-date")
		}
		return startDate, endDate, nil
	default:
		today := window.FormatDate(time.Now())
		return today, today, nil
	}
}
