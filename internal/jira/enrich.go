package jira

import (
	"context"
	"sort"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
	"github.com/zbigniewsiwiec/slack-intel/pkg/model"
)

// DefaultConcurrency bounds simultaneous ticket fetches.
const DefaultConcurrency = 10

// Enricher batch-fetches ticket metadata for the issue keys mentioned in a
// set of messages. Each fetch's failure is isolated: it is logged with the
// ticket id and dropped; the rest of the batch continues.
type Enricher struct {
	api         TicketAPI
	logger      kitlog.Logger
	concurrency int

	now func() time.Time
}

func NewEnricher(api TicketAPI, logger kitlog.Logger) *Enricher {
	return &Enricher{
		api:         api,
		logger:      logger,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
}

// CollectKeys unions issue_keys across msgs, sorted for determinism.
func CollectKeys(msgs []model.Message) []string {
	set := make(map[string]struct{})
	for i := range msgs {
		for _, k := range msgs[i].IssueKeys {
			set[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Enrich fetches every key found in msgs and returns the successes, sorted
// by ticket id with a uniform cached_at. Partial success is expected; the
// failed count is reported by the caller's summary. Cancellation is not a
// per-ticket failure: it aborts the batch and discards partial results so a
// half-finished run is never persisted.
func (e *Enricher) Enrich(ctx context.Context, msgs []model.Message) ([]model.Ticket, error) {
	keys := CollectKeys(msgs)
	if len(keys) == 0 {
		return nil, nil
	}

	var (
		mtx     sync.Mutex
		tickets []model.Ticket
	)
	cachedAt := e.now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			t, err := e.api.Ticket(gctx, key)
			if err != nil {
				if apierror.KindOf(err) == apierror.KindCancelled {
					return err
				}
				level.Warn(e.logger).Log("msg", "failed to fetch ticket", "ticket", key, "err", err)
				return nil
			}
			t.CachedAt = cachedAt

			mtx.Lock()
			tickets = append(tickets, *t)
			mtx.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(tickets, func(i, j int) bool { return tickets[i].TicketID < tickets[j].TicketID })
	level.Info(e.logger).Log("msg", "ticket enrichment done", "requested", len(keys),
		"fetched", len(tickets), "failed", len(keys)-len(tickets))
	return tickets, nil
}
