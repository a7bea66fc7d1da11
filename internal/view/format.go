package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/zbigniewsiwiec/slack-intel/internal/cache"
	"github.com/zbigniewsiwiec/slack-intel/pkg/mention"
)

// Context carries the header fields of a formatted view.
type Context struct {
	ChannelName string
	DateRange   string
	// Channels, when set, renders a multi-channel header instead.
	Channels []string
}

// Formatter renders reconstructed threads as readable text. All markers
// are fixed glyphs so output stays diff-friendly across runs.
type Formatter struct {
	ResolveMentions bool

	// Now drives relative timestamps; injectable for deterministic tests.
	Now func() time.Time
}

func NewFormatter() *Formatter {
	return &Formatter{ResolveMentions: true, Now: time.Now}
}

// Format renders threads. cachedUsers seeds the mention mapping; message
// authors overlay it since they carry fresher data. tickets, when non-empty,
// upgrades issue-key lines to enriched blocks with summary, status, priority
// and assignee; keys without metadata fall back to the bare id.
func (f *Formatter) Format(threads []Thread, ctx Context, cachedUsers map[string]cache.UserRow, tickets map[string]cache.TicketRow) string {
	if len(threads) == 0 {
		return f.formatEmpty(ctx)
	}

	userMap := f.buildUserMapping(threads, cachedUsers)

	var b strings.Builder
	f.writeHeader(&b, ctx)
	b.WriteString("\n")

	var (
		messageCount int
		threadCount  int
		totalReplies int
	)

	for i := range threads {
		t := &threads[i]
		messageCount++
		f.writeMessage(&b, t, messageCount, userMap, tickets)

		switch {
		case len(t.Replies) > 0:
			threadCount++
			totalReplies += len(t.Replies)

			b.WriteString("\n")
			if t.HasClippedReplies {
				fmt.Fprintf(&b, "  🧵 THREAD REPLIES (showing %d of %d+ replies):\n", len(t.Replies), t.ReplyCount)
			} else {
				b.WriteString("  🧵 THREAD REPLIES:\n")
			}
			for j := range t.Replies {
				f.writeReply(&b, &t.Replies[j], j+1, userMap)
			}
			if t.HasClippedReplies {
				b.WriteString("\n  💡 Thread may have additional replies outside this time range\n")
			}

		case t.HasClippedReplies:
			// Parent with zero replies present still renders the marker.
			b.WriteString("\n")
			fmt.Fprintf(&b, "  🧵 THREAD REPLIES (showing 0 of %d+ replies):\n", t.ReplyCount)
			b.WriteString("\n  💡 Thread may have additional replies outside this time range\n")

		case t.IsOrphanedReply:
			b.WriteString("  🔗 Thread clipped (parent message outside time window)\n")
			b.WriteString("  💡 Widen date range to see full thread\n")
		}

		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", 60))
		b.WriteString("\n\n")
	}

	b.WriteString("📊 CONVERSATION SUMMARY:\n")
	fmt.Fprintf(&b, "   • Total Messages: %d\n", messageCount)
	fmt.Fprintf(&b, "   • Total Thread Replies: %d\n", totalReplies)
	fmt.Fprintf(&b, "   • Active Threads: %d", threadCount)

	return b.String()
}

func (f *Formatter) writeHeader(b *strings.Builder, ctx Context) {
	b.WriteString(strings.Repeat("=", 80))
	b.WriteString("\n")
	if len(ctx.Channels) > 0 {
		fmt.Fprintf(b, "📱 SLACK CHANNELS: %s\n", strings.Join(ctx.Channels, ", "))
	} else {
		fmt.Fprintf(b, "📱 SLACK CHANNEL: %s\n", ctx.ChannelName)
	}
	if ctx.DateRange != "" {
		fmt.Fprintf(b, "⏰ TIME WINDOW: %s\n", ctx.DateRange)
	}
	b.WriteString(strings.Repeat("=", 80))
	b.WriteString("\n")
}

func (f *Formatter) formatEmpty(ctx Context) string {
	var b strings.Builder
	f.writeHeader(&b, ctx)
	b.WriteString("\nNo messages found in the specified time window.\n\n")
	b.WriteString(strings.Repeat("=", 80))
	return b.String()
}

func (f *Formatter) writeMessage(b *strings.Builder, t *Thread, n int, userMap map[string]string, tickets map[string]cache.TicketRow) {
	clipped := ""
	if t.IsClippedThread || t.IsOrphanedReply {
		clipped = " (🔗 Thread clipped)"
	}
	fmt.Fprintf(b, "💬 MESSAGE #%d%s\n", n, clipped)

	author := t.AuthorDisplayName()
	if author == "" {
		author = "Unknown User"
	}
	fmt.Fprintf(b, "👤 %s at %s:\n", author, f.formatTimestamp(t.Timestamp))
	fmt.Fprintf(b, "   %s\n", f.resolve(t.Text, userMap))

	if len(t.Reactions) > 0 {
		fmt.Fprintf(b, "   😊 Reactions: %s\n", joinReactions(t.Reactions))
	}
	if len(t.Files) > 0 {
		names := make([]string, 0, len(t.Files))
		for _, file := range t.Files {
			if file.Mimetype != "" {
				names = append(names, fmt.Sprintf("%s (%s)", file.Name, file.Mimetype))
			} else {
				names = append(names, file.Name)
			}
		}
		fmt.Fprintf(b, "   📎 Files: %s\n", strings.Join(names, ", "))
	}
	f.writeTickets(b, t.IssueKeys, tickets, "   ")
}

// writeTickets renders the issue keys of one message. When none of the keys
// has cached metadata the whole line falls back to the id-only form.
func (f *Formatter) writeTickets(b *strings.Builder, keys []string, tickets map[string]cache.TicketRow, indent string) {
	if len(keys) == 0 {
		return
	}

	enriched := false
	for _, key := range keys {
		if _, ok := tickets[key]; ok {
			enriched = true
			break
		}
	}
	if !enriched {
		fmt.Fprintf(b, "%s🎫 JIRA: %s\n", indent, strings.Join(keys, ", "))
		return
	}

	fmt.Fprintf(b, "%s🎫 JIRA Tickets:\n", indent)
	for _, key := range keys {
		tk, ok := tickets[key]
		if !ok {
			fmt.Fprintf(b, "%s   • %s\n", indent, key)
			continue
		}
		fmt.Fprintf(b, "%s   • %s [%s] %s\n", indent, key,
			valueOr(tk.Priority, "Unknown"), valueOr(tk.Status, "Unknown"))
		fmt.Fprintf(b, "%s     \"%s\"\n", indent, truncateSummary(valueOr(tk.Summary, "No summary")))
		fmt.Fprintf(b, "%s     Assignee: %s\n", indent, valueOr(tk.Assignee, "Unassigned"))
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncateSummary(s string) string {
	if len(s) > 50 {
		return s[:47] + "..."
	}
	return s
}

func (f *Formatter) writeReply(b *strings.Builder, row *cache.MessageRow, n int, userMap map[string]string) {
	author := row.AuthorDisplayName()
	if author == "" {
		author = "Unknown User"
	}
	fmt.Fprintf(b, "    ↳ REPLY #%d: %s at %s:\n", n, author, f.formatTimestamp(row.Timestamp))
	fmt.Fprintf(b, "       %s\n", f.resolve(row.Text, userMap))

	if len(row.Reactions) > 0 {
		fmt.Fprintf(b, "       😊 Reactions: %s\n", joinReactions(row.Reactions))
	}
	if len(row.Files) > 0 {
		names := make([]string, 0, len(row.Files))
		for _, file := range row.Files {
			names = append(names, file.Name)
		}
		fmt.Fprintf(b, "       📎 Files: %s\n", strings.Join(names, ", "))
	}
}

func joinReactions(reactions []cache.ReactionRow) string {
	parts := make([]string, 0, len(reactions))
	for _, r := range reactions {
		parts = append(parts, fmt.Sprintf("%s(%d)", r.Emoji, r.Count))
	}
	return strings.Join(parts, ", ")
}

// buildUserMapping starts from the cached users and overlays every author
// present in the view, replies included.
func (f *Formatter) buildUserMapping(threads []Thread, cachedUsers map[string]cache.UserRow) map[string]string {
	if !f.ResolveMentions {
		return nil
	}

	userMap := make(map[string]string, len(cachedUsers))
	for id, u := range cachedUsers {
		userMap[id] = u.UserDisplayName()
	}

	add := func(row *cache.MessageRow) {
		if row.UserID == nil || *row.UserID == "" {
			return
		}
		userMap[*row.UserID] = row.AuthorDisplayName()
	}
	for i := range threads {
		add(&threads[i].MessageRow)
		for j := range threads[i].Replies {
			add(&threads[i].Replies[j])
		}
	}
	return userMap
}

func (f *Formatter) resolve(text string, userMap map[string]string) string {
	if !f.ResolveMentions {
		return text
	}
	return mention.ResolveUsers(text, userMap)
}

// formatTimestamp renders "2006-01-02 15:04 (2 days ago)". Malformed
// timestamps pass through truncated.
func (f *Formatter) formatTimestamp(ts string) string {
	if ts == "" {
		return "unknown time"
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		if len(ts) >= 16 {
			return ts[:16]
		}
		return ts
	}
	return fmt.Sprintf("%s (%s)", t.Format("2006-01-02 15:04"), f.relativeTime(t))
}

func (f *Formatter) relativeTime(t time.Time) string {
	seconds := f.Now().Sub(t).Seconds()

	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s ago", unit)
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return plural(int(seconds/60), "min")
	case seconds < 86400:
		return plural(int(seconds/3600), "hour")
	case seconds < 604800:
		return plural(int(seconds/86400), "day")
	case seconds < 2592000:
		return plural(int(seconds/604800), "week")
	case seconds < 31536000:
		return plural(int(seconds/2592000), "month")
	default:
		return plural(int(seconds/31536000), "year")
	}
}
