package view

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zbigniewsiwiec/slack-intel/internal/cache"
)

func fixedFormatter() *Formatter {
	f := NewFormatter()
	f.Now = func() time.Time { return time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC) }
	return f
}

func authored(r cache.MessageRow, userID, realName string) cache.MessageRow {
	r.UserID = &userID
	r.UserRealName = &realName
	return r
}

func TestFormatEmpty(t *testing.T) {
	out := fixedFormatter().Format(nil, Context{ChannelName: "backend", DateRange: "2025-03-09"}, nil, nil)

	assert.Contains(t, out, "📱 SLACK CHANNEL: backend")
	assert.Contains(t, out, "⏰ TIME WINDOW: 2025-03-09")
	assert.Contains(t, out, "No messages found in the specified time window.")
	assert.Contains(t, out, strings.Repeat("=", 80))
}

func TestFormatMessageBlock(t *testing.T) {
	msg := authored(row("1.0001", "2025-03-09T10:00:00Z"), "U1", "Jane Doe")
	msg.Text = "shipping PRD-123 today"
	msg.IssueKeys = []string{"PRD-123"}
	msg.Reactions = []cache.ReactionRow{{Emoji: "tada", Count: 3}}
	msg.Files = []cache.FileRow{{Name: "notes.txt", Mimetype: "text/plain"}}

	out := fixedFormatter().Format(Reconstruct([]cache.MessageRow{msg}),
		Context{ChannelName: "backend", DateRange: "2025-03-09"}, nil, nil)

	assert.Contains(t, out, "💬 MESSAGE #1\n")
	assert.Contains(t, out, "👤 Jane Doe at 2025-03-09 10:00 (2 days ago):")
	assert.Contains(t, out, "shipping PRD-123 today")
	assert.Contains(t, out, "😊 Reactions: tada(3)")
	assert.Contains(t, out, "📎 Files: notes.txt (text/plain)")
	assert.Contains(t, out, "🎫 JIRA: PRD-123")
	assert.Contains(t, out, strings.Repeat("-", 60))
	assert.Contains(t, out, "📊 CONVERSATION SUMMARY:")
	assert.Contains(t, out, "• Total Messages: 1")
	assert.Contains(t, out, "• Total Thread Replies: 0")
	assert.Contains(t, out, "• Active Threads: 0")
}

func TestFormatThread(t *testing.T) {
	rows := []cache.MessageRow{
		authored(parentRow("1.0001", "2025-03-09T10:00:00Z", 2), "U1", "Jane Doe"),
		authored(replyRow("1.0002", "2025-03-09T10:01:00Z", "1.0001"), "U2", "Bob Smith"),
		authored(replyRow("1.0003", "2025-03-09T10:02:00Z", "1.0001"), "U1", "Jane Doe"),
	}

	out := fixedFormatter().Format(Reconstruct(rows),
		Context{ChannelName: "backend", DateRange: "2025-03-09"}, nil, nil)

	assert.Contains(t, out, "🧵 THREAD REPLIES:")
	assert.Contains(t, out, "↳ REPLY #1: Bob Smith at")
	assert.Contains(t, out, "↳ REPLY #2: Jane Doe at")
	assert.NotContains(t, out, "showing")
	assert.Contains(t, out, "• Total Thread Replies: 2")
	assert.Contains(t, out, "• Active Threads: 1")
}

func TestFormatClippedThread(t *testing.T) {
	rows := []cache.MessageRow{
		parentRow("1.0001", "2025-03-09T10:00:00Z", 5),
		replyRow("1.0002", "2025-03-09T10:01:00Z", "1.0001"),
	}

	out := fixedFormatter().Format(Reconstruct(rows),
		Context{ChannelName: "backend", DateRange: "2025-03-09"}, nil, nil)

	assert.Contains(t, out, "💬 MESSAGE #1 (🔗 Thread clipped)")
	assert.Contains(t, out, "🧵 THREAD REPLIES (showing 1 of 5+ replies):")
	assert.Contains(t, out, "💡 Thread may have additional replies outside this time range")
}

func TestFormatZeroAttachedClippedParent(t *testing.T) {
	out := fixedFormatter().Format(
		Reconstruct([]cache.MessageRow{parentRow("1.0001", "2025-03-09T10:00:00Z", 3)}),
		Context{ChannelName: "backend", DateRange: "2025-03-09"}, nil, nil)

	assert.Contains(t, out, "🧵 THREAD REPLIES (showing 0 of 3+ replies):")
}

func TestFormatOrphanedReply(t *testing.T) {
	out := fixedFormatter().Format(
		Reconstruct([]cache.MessageRow{replyRow("1.0002", "2025-03-09T10:01:00Z", "1.0000")}),
		Context{ChannelName: "backend", DateRange: "2025-03-09"}, nil, nil)

	assert.Contains(t, out, "💬 MESSAGE #1 (🔗 Thread clipped)")
	assert.Contains(t, out, "🔗 Thread clipped (parent message outside time window)")
	assert.Contains(t, out, "💡 Widen date range to see full thread")
}

func TestFormatResolvesMentions(t *testing.T) {
	name := "jane"
	cached := map[string]cache.UserRow{
		"U7": {UserID: "U7", UserName: &name},
	}

	msg := row("1.0001", "2025-03-09T10:00:00Z")
	msg.Text = "ping <@U7> and <@U9>"

	out := fixedFormatter().Format(Reconstruct([]cache.MessageRow{msg}),
		Context{ChannelName: "backend", DateRange: "2025-03-09"}, cached, nil)

	assert.Contains(t, out, "ping @jane and <@U9>")
}

func TestFormatMentionsDisabled(t *testing.T) {
	name := "jane"
	cached := map[string]cache.UserRow{"U7": {UserID: "U7", UserName: &name}}

	msg := row("1.0001", "2025-03-09T10:00:00Z")
	msg.Text = "ping <@U7>"

	f := fixedFormatter()
	f.ResolveMentions = false
	out := f.Format(Reconstruct([]cache.MessageRow{msg}),
		Context{ChannelName: "backend", DateRange: "2025-03-09"}, cached, nil)

	assert.Contains(t, out, "ping <@U7>")
}

func TestFormatAuthorOverlaysCachedUser(t *testing.T) {
	stale := "Old Name"
	cached := map[string]cache.UserRow{"U1": {UserID: "U1", UserRealName: &stale}}

	author := authored(row("1.0001", "2025-03-09T10:00:00Z"), "U1", "Jane Doe")
	mentioner := row("1.0002", "2025-03-09T10:01:00Z")
	mentioner.Text = "thanks <@U1>"

	out := fixedFormatter().Format(Reconstruct([]cache.MessageRow{author, mentioner}),
		Context{ChannelName: "backend", DateRange: "2025-03-09"}, cached, nil)

	// message author data is fresher than the cached record
	assert.Contains(t, out, "thanks @Jane Doe")
}

func TestFormatUnknownAuthor(t *testing.T) {
	out := fixedFormatter().Format(
		Reconstruct([]cache.MessageRow{row("1.0001", "2025-03-09T10:00:00Z")}),
		Context{ChannelName: "backend", DateRange: "2025-03-09"}, nil, nil)

	assert.Contains(t, out, "👤 Unknown User at")
}

func TestFormatEnrichedTickets(t *testing.T) {
	msg := row("1.0001", "2025-03-09T10:00:00Z")
	msg.Text = "shipping PRD-123 and OPS-7 today"
	msg.IssueKeys = []string{"PRD-123", "OPS-7"}

	tickets := map[string]cache.TicketRow{
		"PRD-123": {
			TicketID: "PRD-123",
			Summary:  "fix the thing",
			Status:   "In Progress",
			Priority: "High",
			Assignee: "Jane Doe",
		},
	}

	out := fixedFormatter().Format(Reconstruct([]cache.MessageRow{msg}),
		Context{ChannelName: "backend", DateRange: "2025-03-09"}, nil, tickets)

	assert.Contains(t, out, "🎫 JIRA Tickets:")
	assert.Contains(t, out, "• PRD-123 [High] In Progress")
	assert.Contains(t, out, "\"fix the thing\"")
	assert.Contains(t, out, "Assignee: Jane Doe")
	// keys without cached metadata render id-only inside the block
	assert.Contains(t, out, "• OPS-7\n")
	assert.NotContains(t, out, "🎫 JIRA: ")
}

func TestFormatTicketsFallbackWithoutMetadata(t *testing.T) {
	msg := row("1.0001", "2025-03-09T10:00:00Z")
	msg.IssueKeys = []string{"PRD-123", "OPS-7"}

	out := fixedFormatter().Format(Reconstruct([]cache.MessageRow{msg}),
		Context{ChannelName: "backend", DateRange: "2025-03-09"}, nil, nil)

	assert.Contains(t, out, "🎫 JIRA: PRD-123, OPS-7")
	assert.NotContains(t, out, "JIRA Tickets:")
}

func TestFormatEnrichedTicketSparseFields(t *testing.T) {
	long := strings.Repeat("x", 60)
	msg := row("1.0001", "2025-03-09T10:00:00Z")
	msg.IssueKeys = []string{"AB-1"}

	tickets := map[string]cache.TicketRow{
		"AB-1": {TicketID: "AB-1", Summary: long},
	}

	out := fixedFormatter().Format(Reconstruct([]cache.MessageRow{msg}),
		Context{ChannelName: "backend", DateRange: "2025-03-09"}, nil, tickets)

	assert.Contains(t, out, "• AB-1 [Unknown] Unknown")
	assert.Contains(t, out, "\""+strings.Repeat("x", 47)+"...\"")
	assert.Contains(t, out, "Assignee: Unassigned")
}

func TestRelativeTime(t *testing.T) {
	f := fixedFormatter()
	now := f.Now()

	tests := []struct {
		age      time.Duration
		expected string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5 mins ago"},
		{time.Minute, "1 min ago"},
		{3 * time.Hour, "3 hours ago"},
		{48 * time.Hour, "2 days ago"},
		{14 * 24 * time.Hour, "2 weeks ago"},
		{60 * 24 * time.Hour, "2 months ago"},
		{800 * 24 * time.Hour, "2 years ago"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, f.relativeTime(now.Add(-tc.age)), "age %s", tc.age)
	}
}

func TestFormatMultiChannelHeader(t *testing.T) {
	out := fixedFormatter().Format(nil,
		Context{Channels: []string{"backend", "ops"}, DateRange: "2025-03-09"}, nil, nil)
	assert.Contains(t, out, "📱 SLACK CHANNELS: backend, ops")
}

func TestFormatStableAcrossRuns(t *testing.T) {
	rows := []cache.MessageRow{
		authored(parentRow("1.0001", "2025-03-09T10:00:00Z", 1), "U1", "Jane Doe"),
		authored(replyRow("1.0002", "2025-03-09T10:01:00Z", "1.0001"), "U2", "Bob Smith"),
		row("1.0003", "2025-03-09T10:02:00Z"),
	}
	ctx := Context{ChannelName: "backend", DateRange: "2025-03-09"}

	f := fixedFormatter()
	first := f.Format(Reconstruct(rows), ctx, nil, nil)
	second := f.Format(Reconstruct(rows), ctx, nil, nil)
	require.Equal(t, first, second)
}
