package slack

import (
	"context"
	"strconv"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/zbigniewsiwiec/slack-intel/pkg/mention"
	"github.com/zbigniewsiwiec/slack-intel/pkg/model"
)

// pageLimit is the per-page row cap for history and replies calls.
const pageLimit = 1000

// HistoryPage is one page of channel history or thread replies. An empty
// NextCursor means the page was the last one.
type HistoryPage struct {
	Messages   []model.Message
	NextCursor string
}

// ChatAPI is the narrow capability set the fetcher needs from the chat
// platform. The rate-limited Client wraps any implementation.
type ChatAPI interface {
	History(ctx context.Context, channelID string, oldest, latest time.Time, cursor string) (HistoryPage, error)
	Replies(ctx context.Context, channelID, threadTS, cursor string) (HistoryPage, error)
	User(ctx context.Context, userID string) (*model.User, error)
}

// API adapts slack-go to ChatAPI, converting wire messages into
// model.Message and wire errors into the shared taxonomy.
type API struct {
	client *slackapi.Client
}

var _ ChatAPI = (*API)(nil)

// NewAPI builds the adapter around a token.
func NewAPI(token string) *API {
	return &API{client: slackapi.New(token)}
}

func (a *API) History(ctx context.Context, channelID string, oldest, latest time.Time, cursor string) (HistoryPage, error) {
	resp, err := a.client.GetConversationHistoryContext(ctx, &slackapi.GetConversationHistoryParameters{
		ChannelID: channelID,
		Oldest:    wireTimestamp(oldest),
		Latest:    wireTimestamp(latest),
		Cursor:    cursor,
		Limit:     pageLimit,
	})
	if err != nil {
		return HistoryPage{}, classify(err)
	}

	page := HistoryPage{Messages: make([]model.Message, 0, len(resp.Messages))}
	for i := range resp.Messages {
		page.Messages = append(page.Messages, convertMessage(&resp.Messages[i]))
	}
	if resp.ResponseMetaData.NextCursor != "" && resp.HasMore {
		page.NextCursor = resp.ResponseMetaData.NextCursor
	}
	return page, nil
}

func (a *API) Replies(ctx context.Context, channelID, threadTS, cursor string) (HistoryPage, error) {
	msgs, hasMore, nextCursor, err := a.client.GetConversationRepliesContext(ctx, &slackapi.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Cursor:    cursor,
		Limit:     pageLimit,
	})
	if err != nil {
		return HistoryPage{}, classify(err)
	}

	page := HistoryPage{Messages: make([]model.Message, 0, len(msgs))}
	for i := range msgs {
		page.Messages = append(page.Messages, convertMessage(&msgs[i]))
	}
	if hasMore {
		page.NextCursor = nextCursor
	}
	return page, nil
}

func (a *API) User(ctx context.Context, userID string) (*model.User, error) {
	u, err := a.client.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	return &model.User{
		ID:          u.ID,
		Name:        u.Name,
		RealName:    u.RealName,
		DisplayName: u.Profile.DisplayName,
		Email:       u.Profile.Email,
		IsBot:       u.IsBot,
	}, nil
}

// convertMessage maps one wire message. Issue keys are extracted here so
// every Message carries them regardless of which endpoint produced it.
func convertMessage(msg *slackapi.Message) model.Message {
	m := model.Message{
		MessageID:  msg.Timestamp,
		UserID:     msg.User,
		Text:       msg.Text,
		Timestamp:  parseWireTimestamp(msg.Timestamp),
		ThreadTS:   msg.ThreadTimestamp,
		ReplyCount: msg.ReplyCount,
		IssueKeys:  mention.IssueKeys(msg.Text),
	}

	for _, r := range msg.Reactions {
		m.Reactions = append(m.Reactions, model.Reaction{
			Emoji: r.Name,
			Count: r.Count,
			Users: r.Users,
		})
	}
	for _, f := range msg.Files {
		m.Files = append(m.Files, model.File{
			ID:       f.ID,
			Name:     f.Name,
			Mimetype: f.Mimetype,
			URL:      f.URLPrivate,
			Size:     int64(f.Size),
		})
	}
	return m
}

// wireTimestamp renders t in the platform's "<seconds>.<microseconds>" form.
func wireTimestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + "." + padMicros(t.Nanosecond()/1000)
}

func padMicros(us int) string {
	s := strconv.Itoa(us)
	for len(s) < 6 {
		s = "0" + s
	}
	return s
}

// parseWireTimestamp converts "<seconds>.<microseconds>" to UTC time.
// Malformed input yields the zero time; the row is still usable by id.
func parseWireTimestamp(ts string) time.Time {
	sec, us := ts, "0"
	if i := strings.IndexByte(ts, '.'); i >= 0 {
		sec, us = ts[:i], ts[i+1:]
	}
	s, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}
	}
	u, err := strconv.ParseInt(us, 10, 64)
	if err != nil {
		u = 0
	}
	return time.Unix(s, u*1000).UTC()
}
