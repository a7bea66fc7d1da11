package slack

import (
	"context"
	"errors"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"

	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apierror.Kind
	}{
		{"nil", nil, apierror.KindFatal},
		{"cancelled", context.Canceled, apierror.KindCancelled},
		{"status 401", slackapi.StatusCodeError{Code: 401}, apierror.KindAuth},
		{"status 403", slackapi.StatusCodeError{Code: 403}, apierror.KindAuth},
		{"status 404", slackapi.StatusCodeError{Code: 404}, apierror.KindNotFound},
		{"status 429", slackapi.StatusCodeError{Code: 429}, apierror.KindRetryable},
		{"status 503", slackapi.StatusCodeError{Code: 503}, apierror.KindRetryable},
		{"status 400", slackapi.StatusCodeError{Code: 400}, apierror.KindFatal},
		{"channel_not_found", errors.New("channel_not_found"), apierror.KindNotFound},
		{"users_not_found", errors.New("users_not_found"), apierror.KindNotFound},
		{"invalid_auth", errors.New("invalid_auth"), apierror.KindAuth},
		{"token_expired", errors.New("token_expired"), apierror.KindAuth},
		{"missing_scope", errors.New("missing_scope: channels:history"), apierror.KindAuth},
		{"ratelimited", errors.New("ratelimited"), apierror.KindRetryable},
		{"unknown", errors.New("internal_error"), apierror.KindFatal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err == nil {
				assert.NoError(t, classify(nil))
				return
			}
			assert.Equal(t, tc.kind, apierror.KindOf(classify(tc.err)))
		})
	}
}

func TestClassifyRateLimited(t *testing.T) {
	err := classify(&slackapi.RateLimitedError{RetryAfter: 30 * time.Second})
	assert.Equal(t, apierror.KindRetryable, apierror.KindOf(err))

	d, ok := apierror.RetryAfterOf(err)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, d)
}
