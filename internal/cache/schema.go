// Package cache is the partitioned Parquet dataset: one file per
// (entity, dt, channel) partition under a root directory.
//
//	<root>/messages/dt=YYYY-MM-DD/channel=<alias>/data.parquet
//	<root>/users.parquet
//	<root>/issue_tickets/dt=YYYY-MM-DD/data.parquet
//
// Schemas are fixed; struct field order below is the on-disk column order
// and part of the contract.
package cache

import (
	"time"

	"github.com/zbigniewsiwiec/slack-intel/pkg/model"
)

const (
	DataFileName  = "data.parquet"
	UsersFileName = "users.parquet"

	MessagesDir = "messages"
	TicketsDir  = "issue_tickets"
)

// ReactionRow is one emoji reaction.
type ReactionRow struct {
	Emoji string   `parquet:"emoji,snappy"`
	Count int64    `parquet:"count,snappy"`
	Users []string `parquet:"users,list,snappy"`
}

// FileRow is one file attachment.
type FileRow struct {
	ID       string `parquet:"id,snappy"`
	Name     string `parquet:"name,snappy"`
	Mimetype string `parquet:"mimetype,snappy"`
	URL      string `parquet:"url,snappy"`
	Size     int64  `parquet:"size,snappy"`
}

// MessageRow is the messages schema. Optional scalars are Parquet nulls
// when absent; list fields are never null, only empty.
type MessageRow struct {
	MessageID      string  `parquet:"message_id,snappy"`
	UserID         *string `parquet:"user_id,optional,snappy"`
	Text           string  `parquet:"text,snappy"`
	Timestamp      string  `parquet:"timestamp,snappy"`
	ThreadTS       *string `parquet:"thread_ts,optional,snappy"`
	IsThreadParent bool    `parquet:"is_thread_parent"`
	IsThreadReply  bool    `parquet:"is_thread_reply"`
	ReplyCount     int64   `parquet:"reply_count,snappy"`
	UserName       *string `parquet:"user_name,optional,snappy"`
	UserRealName   *string `parquet:"user_real_name,optional,snappy"`
	UserEmail      *string `parquet:"user_email,optional,snappy"`
	UserIsBot      *bool   `parquet:"user_is_bot,optional"`
	IssueKeys      []string `parquet:"issue_keys,list,snappy"`
	HasReactions   bool     `parquet:"has_reactions"`
	HasFiles       bool     `parquet:"has_files"`
	HasThread      bool     `parquet:"has_thread"`

	// Nested fidelity columns alongside the flattened ones.
	Reactions []ReactionRow `parquet:"reactions,list"`
	Files     []FileRow     `parquet:"files,list"`

	// Populated by multi-channel reads; never persisted.
	ChannelName string `parquet:"-"`
}

// UserRow is the users schema.
type UserRow struct {
	UserID       string  `parquet:"user_id,snappy"`
	UserName     *string `parquet:"user_name,optional,snappy"`
	UserRealName *string `parquet:"user_real_name,optional,snappy"`
	UserEmail    *string `parquet:"user_email,optional,snappy"`
	IsBot        bool    `parquet:"is_bot"`
	CachedAt     string  `parquet:"cached_at,snappy"`
}

// SprintRow is one sprint membership on a ticket.
type SprintRow struct {
	Name  string `parquet:"name,snappy"`
	State string `parquet:"state,snappy"`
}

// TicketRow is the issue_tickets schema, cached_at last.
type TicketRow struct {
	TicketID      string           `parquet:"ticket_id,snappy"`
	Summary       string           `parquet:"summary,snappy"`
	Status        string           `parquet:"status,snappy"`
	Priority      string           `parquet:"priority,snappy"`
	IssueType     string           `parquet:"issue_type,snappy"`
	Assignee      string           `parquet:"assignee,snappy"`
	Created       string           `parquet:"created,snappy"`
	Updated       string           `parquet:"updated,snappy"`
	DueDate       *string          `parquet:"due_date,optional,snappy"`
	StoryPoints   *int64           `parquet:"story_points,optional,snappy"`
	Blocks        []string         `parquet:"blocks,list,snappy"`
	BlockedBy     []string         `parquet:"blocked_by,list,snappy"`
	DependsOn     []string         `parquet:"depends_on,list,snappy"`
	Related       []string         `parquet:"related,list,snappy"`
	Components    []string         `parquet:"components,list,snappy"`
	Labels        []string         `parquet:"labels,list,snappy"`
	FixVersions   []string         `parquet:"fix_versions,list,snappy"`
	Project       *string          `parquet:"project,optional,snappy"`
	Team          *string          `parquet:"team,optional,snappy"`
	EpicLink      *string          `parquet:"epic_link,optional,snappy"`
	Resolution    *string          `parquet:"resolution,optional,snappy"`
	// compression tags are not valid on map columns
	Comments      map[string]int64 `parquet:"comments"`
	TotalComments int64            `parquet:"total_comments,snappy"`
	Sprints       []SprintRow      `parquet:"sprints,list"`
	CachedAt      string           `parquet:"cached_at,snappy"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func fromOptString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// RowFromMessage materializes the flattened columns and derived flags.
func RowFromMessage(m *model.Message) MessageRow {
	row := MessageRow{
		MessageID:      m.MessageID,
		UserID:         optString(m.UserID),
		Text:           m.Text,
		Timestamp:      m.Timestamp.UTC().Format(time.RFC3339),
		ThreadTS:       optString(m.ThreadTS),
		IsThreadParent: m.IsThreadParent(),
		IsThreadReply:  m.IsThreadReply(),
		ReplyCount:     int64(m.ReplyCount),
		IssueKeys:      append([]string{}, m.IssueKeys...),
		HasReactions:   len(m.Reactions) > 0,
		HasFiles:       len(m.Files) > 0,
		HasThread:      false, // reserved; see schema docs
		Reactions:      []ReactionRow{},
		Files:          []FileRow{},
	}

	if u := m.UserInfo; u != nil {
		row.UserName = optString(u.Name)
		row.UserRealName = optString(u.RealName)
		row.UserEmail = optString(u.Email)
		isBot := u.IsBot
		row.UserIsBot = &isBot
	}

	for _, r := range m.Reactions {
		users := r.Users
		if users == nil {
			users = []string{}
		}
		row.Reactions = append(row.Reactions, ReactionRow{
			Emoji: r.Emoji,
			Count: int64(r.Count),
			Users: users,
		})
	}
	for _, f := range m.Files {
		row.Files = append(row.Files, FileRow{
			ID:       f.ID,
			Name:     f.Name,
			Mimetype: f.Mimetype,
			URL:      f.URL,
			Size:     f.Size,
		})
	}
	return row
}

// RowFromUser renders a user record with the batch's cached_at stamp.
func RowFromUser(u *model.User, cachedAt time.Time) UserRow {
	return UserRow{
		UserID:       u.ID,
		UserName:     optString(u.Name),
		UserRealName: optString(u.RealName),
		UserEmail:    optString(u.Email),
		IsBot:        u.IsBot,
		CachedAt:     cachedAt.UTC().Format(time.RFC3339),
	}
}

// RowFromTicket renders a ticket. List fields stay empty, never null.
func RowFromTicket(t *model.Ticket) TicketRow {
	row := TicketRow{
		TicketID:      t.TicketID,
		Summary:       t.Summary,
		Status:        t.Status,
		Priority:      t.Priority,
		IssueType:     t.IssueType,
		Assignee:      t.Assignee,
		Created:       t.Created,
		Updated:       t.Updated,
		DueDate:       optString(t.DueDate),
		StoryPoints:   t.StoryPoints,
		Blocks:        emptyIfNil(t.Blocks),
		BlockedBy:     emptyIfNil(t.BlockedBy),
		DependsOn:     emptyIfNil(t.DependsOn),
		Related:       emptyIfNil(t.Related),
		Components:    emptyIfNil(t.Components),
		Labels:        emptyIfNil(t.Labels),
		FixVersions:   emptyIfNil(t.FixVersions),
		Project:       optString(t.Project),
		Team:          optString(t.Team),
		EpicLink:      optString(t.EpicLink),
		Resolution:    optString(t.Resolution),
		Comments:      map[string]int64{},
		TotalComments: t.TotalComments(),
		Sprints:       []SprintRow{},
		CachedAt:      t.CachedAt.UTC().Format(time.RFC3339),
	}
	for author, n := range t.Comments {
		row.Comments[author] = int64(n)
	}
	for _, s := range t.Sprints {
		row.Sprints = append(row.Sprints, SprintRow{Name: s.Name, State: s.State})
	}
	return row
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// UserDisplayName applies the rendering precedence to a stored user row.
func (r UserRow) UserDisplayName() string {
	if n := fromOptString(r.UserRealName); n != "" {
		return n
	}
	if n := fromOptString(r.UserName); n != "" {
		return n
	}
	return r.UserID
}

// AuthorDisplayName applies the same precedence to a message row.
func (r MessageRow) AuthorDisplayName() string {
	if n := fromOptString(r.UserRealName); n != "" {
		return n
	}
	if n := fromOptString(r.UserName); n != "" {
		return n
	}
	return fromOptString(r.UserID)
}
