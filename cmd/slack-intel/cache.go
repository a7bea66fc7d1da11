package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/zbigniewsiwiec/slack-intel/internal/cache"
	"github.com/zbigniewsiwiec/slack-intel/internal/jira"
	"github.com/zbigniewsiwiec/slack-intel/internal/slack"
	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
	"github.com/zbigniewsiwiec/slack-intel/pkg/config"
	"github.com/zbigniewsiwiec/slack-intel/pkg/model"
	"github.com/zbigniewsiwiec/slack-intel/pkg/window"
)

type cacheOptions struct {
	channels      []string
	days          int
	hours         int
	cachePath     string
	enrichTickets bool
	date          string
}

func newCacheCmd() *cobra.Command {
	var opts cacheOptions

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Fetch channel history and persist it as Parquet partitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCache(cmd.Context(), &opts)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.channels, "channel", "c", nil, "channel name (from config) or raw channel id; repeatable")
	cmd.Flags().IntVar(&opts.days, "days", 2, "lookback in days")
	cmd.Flags().IntVar(&opts.hours, "hours", 0, "extra lookback in hours")
	cmd.Flags().StringVar(&opts.cachePath, "cache-path", defaultCachePath, "dataset root directory")
	cmd.Flags().BoolVar(&opts.enrichTickets, "enrich-tickets", false, "fetch issue-tracker metadata for mentioned keys")
	cmd.Flags().StringVar(&opts.date, "date", "", "partition date for enriched tickets (YYYY-MM-DD, default today)")
	return cmd
}

func runCache(ctx context.Context, opts *cacheOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	channels, err := resolveChannels(cfg, opts.channels)
	if err != nil {
		return err
	}

	ticketDate := window.FormatDate(time.Now())
	if opts.date != "" {
		if _, err := window.ParseDate(opts.date); err != nil {
			return apierror.Newf(apierror.KindConfig, "invalid --date %q, expected YYYY-MM-DD", opts.date)
		}
		ticketDate = opts.date
	}

	token, kind, err := config.ChatToken()
	if err != nil {
		return err
	}

	client := slack.NewClient(slack.NewAPI(token), string(kind), logger)
	fetcher := slack.NewFetcher(client, slack.NewUserCache(), logger)
	writer := cache.NewWriter(opts.cachePath, logger)
	w := window.New(opts.days, opts.hours, time.Now())

	fmt.Printf("Caching %d channel(s), window %s .. %s\n",
		len(channels), w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))

	var (
		allMsgs        []model.Message
		failedChannels int
		partitions     int
		start          = time.Now()
	)

	for _, ch := range channels {
		msgs, err := fetcher.GetMessages(ctx, ch, w)
		if err != nil {
			if apierror.KindOf(err) == apierror.KindCancelled {
				return err
			}
			level.Error(logger).Log("msg", "failed to fetch channel", "channel", ch.Alias(), "err", err)
			failedChannels++
			continue
		}

		byDate := make(map[string][]model.Message)
		for i := range msgs {
			dt := msgs[i].PartitionDate()
			byDate[dt] = append(byDate[dt], msgs[i])
		}
		for dt, batch := range byDate {
			path, err := writer.SaveMessages(ch, dt, batch)
			if err != nil {
				return err
			}
			if path != "" {
				partitions++
			}
		}

		fmt.Printf("  %s: %d messages across %d day(s)\n", ch.Alias(), len(msgs), len(byDate))
		allMsgs = append(allMsgs, msgs...)
	}

	if _, err := writer.SaveUsers(fetcher.Users().Snapshot()); err != nil {
		return err
	}

	var tickets int
	if opts.enrichTickets {
		n, err := enrichTickets(ctx, cfg, writer, ticketDate, allMsgs)
		if err != nil {
			return err
		}
		tickets = n
	}

	fmt.Printf("Done in %s: %d message(s), %d partition(s), %d user(s) cached",
		time.Since(start).Round(time.Millisecond), len(allMsgs), partitions, fetcher.Users().Len())
	if opts.enrichTickets {
		fmt.Printf(", %d ticket(s)", tickets)
	}
	fmt.Println()
	if failedChannels > 0 {
		fmt.Printf("Warning: %d channel(s) failed, see log\n", failedChannels)
	}

	if failedChannels == len(channels) {
		return apierror.Newf(apierror.KindFatal, "all %d channel(s) failed", len(channels))
	}
	return nil
}

// resolveChannels maps --channel values through the config by name or id;
// anything unknown is treated as a raw channel id. Without flags the whole
// config channel list is used.
func resolveChannels(cfg *config.Config, requested []string) ([]model.Channel, error) {
	if len(requested) == 0 {
		if len(cfg.Channels) == 0 {
			return nil, apierror.Newf(apierror.KindConfig,
				"no channels: pass --channel or list channels in %s", config.FileName)
		}
		return cfg.Channels, nil
	}

	out := make([]model.Channel, 0, len(requested))
	for _, req := range requested {
		found := false
		for _, ch := range cfg.Channels {
			if ch.Name == req || ch.ID == req {
				out = append(out, ch)
				found = true
				break
			}
		}
		if !found {
			out = append(out, model.ChannelFromID(req))
		}
	}
	return out, nil
}

func enrichTickets(ctx context.Context, cfg *config.Config, writer *cache.Writer, dt string, msgs []model.Message) (int, error) {
	user, token, server, err := config.IssueCredentials(cfg.Jira.Server)
	if err != nil {
		return 0, err
	}
	api, err := jira.NewRESTClient(server, user, token)
	if err != nil {
		return 0, err
	}

	tickets, err := jira.NewEnricher(api, logger).Enrich(ctx, msgs)
	if err != nil {
		return 0, err
	}
	if len(tickets) == 0 {
		return 0, nil
	}
	if _, err := writer.SaveIssueTickets(dt, tickets); err != nil {
		return 0, err
	}
	return len(tickets), nil
}
