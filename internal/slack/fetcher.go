package slack

import (
	"context"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
	"github.com/zbigniewsiwiec/slack-intel/pkg/model"
	"github.com/zbigniewsiwiec/slack-intel/pkg/window"
)

// Fetcher pulls a channel's messages for a window: paged history, user
// hydration through the cache, and thread expansion. History page errors
// are fatal to the call; per-user and per-thread errors are warnings.
type Fetcher struct {
	client ChatAPI
	users  *UserCache
	logger kitlog.Logger

	// gather width for user and thread fan-outs. The client's semaphore
	// still bounds actual in-flight requests.
	concurrency int
}

func NewFetcher(client ChatAPI, users *UserCache, logger kitlog.Logger) *Fetcher {
	return &Fetcher{
		client:      client,
		users:       users,
		logger:      logger,
		concurrency: DefaultConcurrency,
	}
}

// GetMessages returns the channel's timeline for w plus all thread replies,
// unsorted. Replies outside w are kept: thread expansion is intentionally
// unbounded by the window. When a thread page returns a message_id already
// collected from the timeline, the timeline row wins. Per-user and
// per-thread failures are isolated; cancellation is not, so a cancelled
// channel is never returned as if it were complete.
func (f *Fetcher) GetMessages(ctx context.Context, channel model.Channel, w window.Window) ([]model.Message, error) {
	timeline, err := f.fetchHistory(ctx, channel.ID, w)
	if err != nil {
		return nil, err
	}

	if err := f.hydrateUsers(ctx, timeline); err != nil {
		return nil, err
	}

	var parents []model.Message
	for i := range timeline {
		if timeline[i].IsThreadParent() {
			parents = append(parents, timeline[i])
		}
	}

	seen := make(map[string]struct{}, len(timeline))
	for i := range timeline {
		seen[timeline[i].MessageID] = struct{}{}
	}

	replies, err := f.fetchThreads(ctx, channel.ID, parents, seen)
	if err != nil {
		return nil, err
	}
	if err := f.hydrateUsers(ctx, replies); err != nil {
		return nil, err
	}

	all := append(timeline, replies...)
	for i := range all {
		if all[i].UserID != "" {
			if u, ok := f.users.Get(all[i].UserID); ok {
				all[i].UserInfo = u
			}
		}
	}

	level.Info(f.logger).Log("msg", "fetched channel", "channel", channel.Alias(),
		"timeline", len(timeline), "thread_replies", len(replies))
	return all, nil
}

func (f *Fetcher) fetchHistory(ctx context.Context, channelID string, w window.Window) ([]model.Message, error) {
	var (
		out    []model.Message
		cursor string
	)
	for {
		page, err := f.client.History(ctx, channelID, w.Start, w.End, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Messages...)
		if page.NextCursor == "" {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

// hydrateUsers fetches every distinct uncached author through the worker
// pool. Failures leave the bare user_id on the message; cancellation
// surfaces.
func (f *Fetcher) hydrateUsers(ctx context.Context, msgs []model.Message) error {
	distinct := make(map[string]struct{})
	for i := range msgs {
		if id := msgs[i].UserID; id != "" {
			distinct[id] = struct{}{}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for id := range distinct {
		if _, ok := f.users.Get(id); ok {
			continue
		}
		id := id
		g.Go(func() error {
			_, err := f.users.GetOrFetch(gctx, id, func(ctx context.Context) (*model.User, error) {
				return f.client.User(ctx, id)
			})
			if err != nil {
				if apierror.KindOf(err) == apierror.KindCancelled {
					return err
				}
				level.Warn(f.logger).Log("msg", "failed to fetch user info", "user", id, "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// fetchThreads expands every thread parent concurrently. A failed thread is
// omitted and its parent stays in the timeline; cancellation aborts the
// whole gather.
func (f *Fetcher) fetchThreads(ctx context.Context, channelID string, parents []model.Message, seen map[string]struct{}) ([]model.Message, error) {
	var (
		mtx sync.Mutex
		out []model.Message
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i := range parents {
		threadTS := parents[i].MessageID
		g.Go(func() error {
			replies, err := f.fetchReplies(gctx, channelID, threadTS)
			if err != nil {
				if apierror.KindOf(err) == apierror.KindCancelled {
					return err
				}
				level.Warn(f.logger).Log("msg", "failed to fetch thread replies", "thread", threadTS, "err", err)
				return nil
			}

			mtx.Lock()
			for j := range replies {
				if _, dup := seen[replies[j].MessageID]; dup {
					continue
				}
				seen[replies[j].MessageID] = struct{}{}
				out = append(out, replies[j])
			}
			mtx.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Fetcher) fetchReplies(ctx context.Context, channelID, threadTS string) ([]model.Message, error) {
	var (
		out    []model.Message
		cursor string
		first  = true
	)
	for {
		page, err := f.client.Replies(ctx, channelID, threadTS, cursor)
		if err != nil {
			return nil, err
		}
		msgs := page.Messages
		if first && len(msgs) > 0 {
			// the first row duplicates the parent
			msgs = msgs[1:]
		}
		first = false
		out = append(out, msgs...)
		if page.NextCursor == "" {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

// Users exposes the cache for end-of-run flushing.
func (f *Fetcher) Users() *UserCache { return f.users }
