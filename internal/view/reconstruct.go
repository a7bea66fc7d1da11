// Package view rebuilds threaded conversations from flat partition rows
// and renders them as a stable, diff-friendly text block.
package view

import (
	"sort"

	"github.com/zbigniewsiwiec/slack-intel/internal/cache"
)

// Thread is one top-level entry: a standalone message, a parent with its
// replies nested, or an orphaned reply whose parent fell outside the read.
type Thread struct {
	cache.MessageRow

	Replies []cache.MessageRow

	// HasClippedReplies marks a parent with fewer replies present than its
	// reply_count promises.
	HasClippedReplies bool
	// IsOrphanedReply marks a reply emitted as its own top-level because
	// its parent is not in the dataset.
	IsOrphanedReply bool
	// IsClippedThread marks any thread known to be incomplete.
	IsClippedThread bool
}

// Reconstruct groups flat rows into nested parent+replies structures.
// Replies attach to their parent when it is present, otherwise they become
// orphaned top-levels. Replies sort by (timestamp, message_id); so do the
// emitted top-levels. Flattening the result yields a permutation of rows.
func Reconstruct(rows []cache.MessageRow) []Thread {
	if len(rows) == 0 {
		return nil
	}

	byID := make(map[string]*Thread, len(rows))
	var order []*Thread

	// First pass: everything that is not a reply is its own top-level.
	// A self-parented row (thread_ts == message_id, reply_count == 0) has
	// both flags false and lands here as a standalone.
	for i := range rows {
		row := rows[i]
		if row.IsThreadReply {
			continue
		}
		t := &Thread{MessageRow: row}
		byID[row.MessageID] = t
		order = append(order, t)
	}

	// Second pass: attach replies, or orphan them.
	for i := range rows {
		row := rows[i]
		if !row.IsThreadReply {
			continue
		}
		parentID := ""
		if row.ThreadTS != nil {
			parentID = *row.ThreadTS
		}
		if parent, ok := byID[parentID]; ok {
			parent.Replies = append(parent.Replies, row)
			continue
		}
		order = append(order, &Thread{
			MessageRow:      row,
			IsOrphanedReply: true,
			IsClippedThread: true,
		})
	}

	for _, t := range order {
		sort.Slice(t.Replies, func(i, j int) bool {
			if t.Replies[i].Timestamp != t.Replies[j].Timestamp {
				return t.Replies[i].Timestamp < t.Replies[j].Timestamp
			}
			return t.Replies[i].MessageID < t.Replies[j].MessageID
		})
		// A parent with reply_count > 0 and fewer attached replies is
		// clipped, including the zero-attached case.
		if int64(len(t.Replies)) < t.ReplyCount {
			t.HasClippedReplies = true
			t.IsClippedThread = true
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].Timestamp != order[j].Timestamp {
			return order[i].Timestamp < order[j].Timestamp
		}
		return order[i].MessageID < order[j].MessageID
	})

	out := make([]Thread, 0, len(order))
	for _, t := range order {
		out = append(out, *t)
	}
	return out
}

// Flatten inverts Reconstruct: top-levels followed by their replies.
func Flatten(threads []Thread) []cache.MessageRow {
	var rows []cache.MessageRow
	for i := range threads {
		rows = append(rows, threads[i].MessageRow)
		rows = append(rows, threads[i].Replies...)
	}
	return rows
}
