// Package slack wraps the chat platform API with rate limiting, bounded
// concurrency, a single-flight user cache and the message fetch fan-out.
package slack

import (
	"context"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/time/rate"

	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
	"github.com/zbigniewsiwiec/slack-intel/pkg/model"
)

// Rate-limit design targets. The bucket smooths the average request rate;
// the semaphore caps peak in-flight requests and bounds memory.
const (
	DefaultRate        = 20
	DefaultBurst       = 50
	DefaultConcurrency = 10
)

// Client is a rate-limited ChatAPI. Every outgoing call acquires one token
// from the shared bucket and one slot from the concurrency semaphore, in
// that order. The client itself never retries.
type Client struct {
	api     ChatAPI
	limiter *rate.Limiter
	sem     chan struct{}
	logger  kitlog.Logger
}

var _ ChatAPI = (*Client)(nil)

// ClientOption tweaks a Client at construction.
type ClientOption func(*Client)

// WithRateLimit overrides the default token bucket.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithConcurrency overrides the in-flight request cap.
func WithConcurrency(n int) ClientOption {
	return func(c *Client) { c.sem = make(chan struct{}, n) }
}

// NewClient wraps api with the process-wide limits. tokenKind is recorded
// for logging only.
func NewClient(api ChatAPI, tokenKind string, logger kitlog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		api:     api,
		limiter: rate.NewLimiter(DefaultRate, DefaultBurst),
		sem:     make(chan struct{}, DefaultConcurrency),
		logger:  logger,
	}
	for _, o := range opts {
		o(c)
	}
	level.Debug(logger).Log("msg", "chat client ready", "token_kind", tokenKind,
		"rate", c.limiter.Limit(), "burst", c.limiter.Burst(), "concurrency", cap(c.sem))
	return c
}

// acquire blocks on the token bucket then the semaphore. The returned
// release must be called once the remote call finishes.
func (c *Client) acquire(ctx context.Context) (func(), error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apierror.New(apierror.KindCancelled, err)
	}
	select {
	case c.sem <- struct{}{}:
		return func() { <-c.sem }, nil
	case <-ctx.Done():
		return nil, apierror.New(apierror.KindCancelled, ctx.Err())
	}
}

func (c *Client) History(ctx context.Context, channelID string, oldest, latest time.Time, cursor string) (HistoryPage, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return HistoryPage{}, err
	}
	defer release()
	return c.api.History(ctx, channelID, oldest, latest, cursor)
}

func (c *Client) Replies(ctx context.Context, channelID, threadTS, cursor string) (HistoryPage, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return HistoryPage{}, err
	}
	defer release()
	return c.api.Replies(ctx, channelID, threadTS, cursor)
}

func (c *Client) User(ctx context.Context, userID string) (*model.User, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return c.api.User(ctx, userID)
}
