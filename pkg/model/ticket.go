package model

import "time"

// Sprint is a named sprint with its lifecycle state.
type Sprint struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// Ticket is issue-tracker metadata for one issue key. Dependency lists hold
// raw issue ids; cycles are possible and are not resolved here.
type Ticket struct {
	TicketID    string         `json:"ticket_id"`
	Summary     string         `json:"summary"`
	Status      string         `json:"status"`
	Priority    string         `json:"priority"`
	IssueType   string         `json:"issue_type"`
	Assignee    string         `json:"assignee"`
	Created     string         `json:"created"`
	Updated     string         `json:"updated"`
	DueDate     string         `json:"due_date,omitempty"`
	StoryPoints *int64         `json:"story_points,omitempty"`
	Blocks      []string       `json:"blocks,omitempty"`
	BlockedBy   []string       `json:"blocked_by,omitempty"`
	DependsOn   []string       `json:"depends_on,omitempty"`
	Related     []string       `json:"related,omitempty"`
	Components  []string       `json:"components,omitempty"`
	Labels      []string       `json:"labels,omitempty"`
	FixVersions []string       `json:"fix_versions,omitempty"`
	Project     string         `json:"project,omitempty"`
	Team        string         `json:"team,omitempty"`
	EpicLink    string         `json:"epic_link,omitempty"`
	Resolution  string         `json:"resolution,omitempty"`
	Comments    map[string]int `json:"comments,omitempty"`
	Sprints     []Sprint       `json:"sprints,omitempty"`
	CachedAt    time.Time      `json:"cached_at"`
}

// TotalComments sums the per-author comment counts.
func (t *Ticket) TotalComments() int64 {
	var n int64
	for _, c := range t.Comments {
		n += int64(c)
	}
	return n
}
