// Package model holds the entities shared across the ingest, cache and view
// layers: chat messages, users, channels and issue tickets.
package model

import (
	"fmt"
	"time"
)

// User is a chat workspace user.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	RealName    string `json:"real_name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	IsBot       bool   `json:"is_bot"`
}

// DisplayLabel is the precedence used everywhere a user is rendered:
// real name, then handle, then the raw id.
func (u *User) DisplayLabel() string {
	if u == nil {
		return ""
	}
	if u.RealName != "" {
		return u.RealName
	}
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// Reaction is an emoji reaction on a message.
type Reaction struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// File is a file attached to a message.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
	URL      string `json:"url,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Message is a chat message with joined user info and extracted issue keys.
// MessageID is the platform's native "<seconds>.<microseconds>" timestamp
// string and is unique within a channel.
type Message struct {
	MessageID  string     `json:"message_id"`
	UserID     string     `json:"user_id,omitempty"`
	Text       string     `json:"text"`
	Timestamp  time.Time  `json:"timestamp"`
	ThreadTS   string     `json:"thread_ts,omitempty"`
	ReplyCount int        `json:"reply_count"`
	UserInfo   *User      `json:"user_info,omitempty"`
	Reactions  []Reaction `json:"reactions,omitempty"`
	Files      []File     `json:"files,omitempty"`
	IssueKeys  []string   `json:"issue_keys,omitempty"`
}

// IsThreadParent reports whether this message heads a thread.
func (m *Message) IsThreadParent() bool {
	return m.ThreadTS == m.MessageID && m.ReplyCount > 0
}

// IsThreadReply reports whether this message replies inside some other
// message's thread. Mutually exclusive with IsThreadParent.
func (m *Message) IsThreadReply() bool {
	return m.ThreadTS != "" && m.ThreadTS != m.MessageID
}

// PartitionDate is the message's own UTC calendar date, which drives the
// dt= partition it lands in. Never the ingestion date.
func (m *Message) PartitionDate() string {
	return m.Timestamp.UTC().Format("2006-01-02")
}

// Channel pairs a user-facing name with the platform channel id.
type Channel struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
}

// ChannelFromID synthesizes a channel whose alias is "channel_<id>", used
// when a caller supplies only an id.
func ChannelFromID(id string) Channel {
	return Channel{Name: fmt.Sprintf("channel_%s", id), ID: id}
}

// Alias is the string used in the channel= partition segment.
func (c Channel) Alias() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("channel_%s", c.ID)
}
