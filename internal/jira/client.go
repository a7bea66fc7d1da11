// Package jira fetches issue-tracker metadata for the enrichment phase.
// The coordinator is purely additive: message persistence never depends on
// it.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
	"github.com/zbigniewsiwiec/slack-intel/pkg/model"
)

// TicketAPI is the narrow capability set the enricher needs.
type TicketAPI interface {
	Ticket(ctx context.Context, key string) (*model.Ticket, error)
}

// RESTClient is a minimal issue REST adapter with basic auth. The tracker
// client proper is an external collaborator; this only maps one endpoint
// into model.Ticket and the error taxonomy.
type RESTClient struct {
	base  *url.URL
	user  string
	token string
	http  *http.Client
}

var _ TicketAPI = (*RESTClient)(nil)

// NewRESTClient builds a client for server (e.g. https://org.example.com)
// with a basic-auth user/token pair.
func NewRESTClient(server, user, token string) (*RESTClient, error) {
	base, err := url.Parse(server)
	if err != nil || base.Host == "" {
		return nil, apierror.Newf(apierror.KindConfig, "invalid issue-tracker server %q", server)
	}
	return &RESTClient{
		base:  base,
		user:  user,
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *RESTClient) Ticket(ctx context.Context, key string) (*model.Ticket, error) {
	u := *c.base
	u.Path, _ = url.JoinPath(u.Path, "rest/api/2/issue", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apierror.New(apierror.KindFatal, err)
	}
	req.SetBasicAuth(c.user, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apierror.New(apierror.KindCancelled, ctx.Err())
		}
		return nil, apierror.New(apierror.KindRetryable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apierror.Newf(apierror.KindAuth, "issue fetch returned %d", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, apierror.Newf(apierror.KindNotFound, "issue %s does not exist or is not visible", key)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &apierror.Error{
			Kind:       apierror.KindRetryable,
			RetryAfter: retryAfter(resp),
			Err:        fmt.Errorf("issue fetch returned %d", resp.StatusCode),
		}
	default:
		return nil, apierror.Newf(apierror.KindFatal, "issue fetch returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.New(apierror.KindRetryable, err)
	}

	var issue wireIssue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, apierror.New(apierror.KindFatal, err)
	}
	return issue.toTicket(key), nil
}

func retryAfter(resp *http.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// Wire shapes for the subset of issue fields the ticket schema carries.
type wireIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary   string        `json:"summary"`
		Status    wireNamed     `json:"status"`
		Priority  wireNamed     `json:"priority"`
		IssueType wireNamed     `json:"issuetype"`
		Assignee  *wireUser     `json:"assignee"`
		Created   string        `json:"created"`
		Updated   string        `json:"updated"`
		DueDate   string        `json:"duedate"`
		Project   struct {
			Key string `json:"key"`
		} `json:"project"`
		Resolution  *wireNamed  `json:"resolution"`
		Components  []wireNamed `json:"components"`
		Labels      []string    `json:"labels"`
		FixVersions []wireNamed `json:"fixVersions"`
		IssueLinks  []wireLink  `json:"issuelinks"`
		Comment     struct {
			Comments []struct {
				Author wireUser `json:"author"`
			} `json:"comments"`
		} `json:"comment"`
		StoryPoints *float64     `json:"customfield_10016"`
		Team        *wireNamed   `json:"customfield_10021"`
		EpicLink    string       `json:"customfield_10014"`
		Sprints     []wireSprint `json:"customfield_10020"`
	} `json:"fields"`
}

type wireNamed struct {
	Name string `json:"name"`
}

type wireUser struct {
	DisplayName string `json:"displayName"`
}

type wireLink struct {
	Type struct {
		Name string `json:"name"`
	} `json:"type"`
	OutwardIssue *struct {
		Key string `json:"key"`
	} `json:"outwardIssue"`
	InwardIssue *struct {
		Key string `json:"key"`
	} `json:"inwardIssue"`
}

type wireSprint struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

func (w *wireIssue) toTicket(key string) *model.Ticket {
	f := &w.Fields

	t := &model.Ticket{
		TicketID:  key,
		Summary:   f.Summary,
		Status:    f.Status.Name,
		Priority:  f.Priority.Name,
		IssueType: f.IssueType.Name,
		Assignee:  "Unassigned",
		Created:   normalizeTime(f.Created),
		Updated:   normalizeTime(f.Updated),
		DueDate:   f.DueDate,
		Project:   f.Project.Key,
		Labels:    f.Labels,
		EpicLink:  f.EpicLink,
	}
	if w.Key != "" {
		t.TicketID = w.Key
	}
	if f.Assignee != nil {
		t.Assignee = f.Assignee.DisplayName
	}
	if f.Resolution != nil {
		t.Resolution = f.Resolution.Name
	}
	if f.Team != nil {
		t.Team = f.Team.Name
	}
	if f.StoryPoints != nil {
		pts := int64(*f.StoryPoints)
		t.StoryPoints = &pts
	}

	for _, c := range f.Components {
		t.Components = append(t.Components, c.Name)
	}
	for _, v := range f.FixVersions {
		t.FixVersions = append(t.FixVersions, v.Name)
	}
	for _, s := range f.Sprints {
		t.Sprints = append(t.Sprints, model.Sprint{Name: s.Name, State: s.State})
	}

	for _, l := range f.IssueLinks {
		switch {
		case l.Type.Name == "Blocks" && l.OutwardIssue != nil:
			t.Blocks = append(t.Blocks, l.OutwardIssue.Key)
		case l.Type.Name == "Blocks" && l.InwardIssue != nil:
			t.BlockedBy = append(t.BlockedBy, l.InwardIssue.Key)
		case l.Type.Name == "Depends" && l.OutwardIssue != nil:
			t.DependsOn = append(t.DependsOn, l.OutwardIssue.Key)
		case l.Type.Name == "Relates" && l.OutwardIssue != nil:
			t.Related = append(t.Related, l.OutwardIssue.Key)
		}
	}

	if len(f.Comment.Comments) > 0 {
		t.Comments = make(map[string]int)
		for _, c := range f.Comment.Comments {
			t.Comments[c.Author.DisplayName]++
		}
	}
	return t
}

// normalizeTime re-renders the tracker's "2006-01-02T15:04:05.000-0700"
// stamps as RFC 3339 UTC; unparseable input passes through unchanged.
func normalizeTime(s string) string {
	if s == "" {
		return ""
	}
	if t, err := time.Parse("2006-01-02T15:04:05.000-0700", s); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	return s
}
