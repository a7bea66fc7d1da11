package slack

import (
	"context"
	"errors"
	"net/http"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
)

// classify maps slack-go errors onto the shared taxonomy. 429 and 5xx are
// retryable (Retry-After honored when advised), 401/403 are auth failures,
// 404 and *_not_found API responses are not-found, everything else fatal.
// The client never retries; callers decide.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apierror.New(apierror.KindCancelled, err)
	}

	var rle *slackapi.RateLimitedError
	if errors.As(err, &rle) {
		return &apierror.Error{Kind: apierror.KindRetryable, RetryAfter: rle.RetryAfter, Err: err}
	}

	var sce slackapi.StatusCodeError
	if errors.As(err, &sce) {
		switch {
		case sce.Code == http.StatusUnauthorized || sce.Code == http.StatusForbidden:
			return apierror.New(apierror.KindAuth, err)
		case sce.Code == http.StatusNotFound:
			return apierror.New(apierror.KindNotFound, err)
		case sce.Code == http.StatusTooManyRequests || sce.Code >= 500:
			return apierror.New(apierror.KindRetryable, err)
		default:
			return apierror.New(apierror.KindFatal, err)
		}
	}

	// API-level errors arrive as bare error strings.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not_found"):
		return apierror.New(apierror.KindNotFound, err)
	case msg == "not_authed" || msg == "invalid_auth" || msg == "account_inactive" ||
		msg == "token_revoked" || msg == "token_expired" || strings.Contains(msg, "missing_scope"):
		return apierror.New(apierror.KindAuth, err)
	case msg == "ratelimited" || msg == "rate_limited":
		return apierror.New(apierror.KindRetryable, err)
	}

	return apierror.New(apierror.KindFatal, err)
}
