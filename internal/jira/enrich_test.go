package jira

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
	"github.com/zbigniewsiwiec/slack-intel/pkg/model"
)

type fakeTicketAPI struct {
	tickets map[string]*model.Ticket
	errs    map[string]error
}

func (f *fakeTicketAPI) Ticket(ctx context.Context, key string) (*model.Ticket, error) {
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	if t, ok := f.tickets[key]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, apierror.Newf(apierror.KindNotFound, "issue %s does not exist", key)
}

func TestCollectKeys(t *testing.T) {
	msgs := []model.Message{
		{IssueKeys: []string{"ZX-9", "PRD-123"}},
		{IssueKeys: []string{"PRD-123"}},
		{},
		{IssueKeys: []string{"AB-1"}},
	}
	assert.Equal(t, []string{"AB-1", "PRD-123", "ZX-9"}, CollectKeys(msgs))
	assert.Empty(t, CollectKeys(nil))
}

func TestEnrich(t *testing.T) {
	api := &fakeTicketAPI{
		tickets: map[string]*model.Ticket{
			"PRD-123": {TicketID: "PRD-123", Summary: "fix the thing"},
			"AB-1":    {TicketID: "AB-1", Summary: "other thing"},
		},
		errs: map[string]error{
			"ZX-9": apierror.Newf(apierror.KindRetryable, "busy"),
		},
	}

	e := NewEnricher(api, kitlog.NewNopLogger())
	fixed := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	msgs := []model.Message{
		{IssueKeys: []string{"PRD-123", "ZX-9"}},
		{IssueKeys: []string{"AB-1"}},
	}
	tickets, err := e.Enrich(context.Background(), msgs)
	require.NoError(t, err)

	// the failed key is dropped, the rest come back sorted by ticket id
	require.Len(t, tickets, 2)
	assert.Equal(t, "AB-1", tickets[0].TicketID)
	assert.Equal(t, "PRD-123", tickets[1].TicketID)

	for _, tk := range tickets {
		assert.Equal(t, fixed, tk.CachedAt)
	}
}

func TestEnrichNoKeys(t *testing.T) {
	e := NewEnricher(&fakeTicketAPI{}, kitlog.NewNopLogger())
	tickets, err := e.Enrich(context.Background(), []model.Message{{Text: "no keys here"}})
	require.NoError(t, err)
	assert.Nil(t, tickets)
}

// cancellingTicketAPI serves its first ticket, then cancels the run.
type cancellingTicketAPI struct {
	cancel context.CancelFunc
	served atomic.Int32
}

func (c *cancellingTicketAPI) Ticket(ctx context.Context, key string) (*model.Ticket, error) {
	if c.served.Add(1) == 1 {
		return &model.Ticket{TicketID: key}, nil
	}
	c.cancel()
	<-ctx.Done()
	return nil, apierror.New(apierror.KindCancelled, ctx.Err())
}

func TestEnrichCancelledDiscardsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := NewEnricher(&cancellingTicketAPI{cancel: cancel}, kitlog.NewNopLogger())
	e.concurrency = 1

	tickets, err := e.Enrich(ctx, []model.Message{
		{IssueKeys: []string{"AB-1", "PRD-123", "ZX-9"}},
	})

	// an interrupted batch surfaces the cancellation and yields nothing,
	// so the caller never persists a half-finished partition
	require.Error(t, err)
	assert.Equal(t, apierror.KindCancelled, apierror.KindOf(err))
	assert.Nil(t, tickets)
}
