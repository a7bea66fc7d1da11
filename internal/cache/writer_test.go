package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
	"github.com/zbigniewsiwiec/slack-intel/pkg/model"
)

var testClock = func() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

func testMessage(id string, ts time.Time) model.Message {
	return model.Message{
		MessageID: id,
		UserID:    "U1",
		Text:      "text " + id,
		Timestamp: ts,
		UserInfo:  &model.User{ID: "U1", Name: "jane", RealName: "Jane Doe"},
	}
}

func TestSaveMessagesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, kitlog.NewNopLogger()).WithClock(testClock)
	ch := model.Channel{Name: "backend", ID: "C1"}

	ts := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	rich := testMessage("1.0002", ts.Add(time.Minute))
	rich.IssueKeys = []string{"PRD-123"}
	rich.Reactions = []model.Reaction{{Emoji: "thumbsup", Count: 2, Users: []string{"U1", "U2"}}}
	rich.Files = []model.File{{ID: "F1", Name: "report.pdf", Mimetype: "application/pdf", Size: 1024}}

	path, err := w.SaveMessages(ch, "2025-03-09", []model.Message{rich, testMessage("1.0001", ts)})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "messages", "dt=2025-03-09", "channel=backend", "data.parquet"), path)

	rows, err := NewReader(dir, kitlog.NewNopLogger()).ReadChannel("backend", "2025-03-09")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// sorted by (timestamp, message_id)
	assert.Equal(t, "1.0001", rows[0].MessageID)
	assert.Equal(t, "1.0002", rows[1].MessageID)

	got := rows[1]
	assert.Equal(t, "text 1.0002", got.Text)
	assert.Equal(t, "2025-03-09T10:01:00Z", got.Timestamp)
	require.NotNil(t, got.UserID)
	assert.Equal(t, "U1", *got.UserID)
	require.NotNil(t, got.UserRealName)
	assert.Equal(t, "Jane Doe", *got.UserRealName)
	assert.Equal(t, []string{"PRD-123"}, got.IssueKeys)
	assert.True(t, got.HasReactions)
	assert.True(t, got.HasFiles)
	assert.False(t, got.HasThread)

	require.Len(t, got.Reactions, 1)
	assert.Equal(t, "thumbsup", got.Reactions[0].Emoji)
	assert.Equal(t, int64(2), got.Reactions[0].Count)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "report.pdf", got.Files[0].Name)
	assert.Equal(t, int64(1024), got.Files[0].Size)
}

func TestSaveMessagesEmptyInput(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, kitlog.NewNopLogger())

	path, err := w.SaveMessages(model.Channel{Name: "backend"}, "2025-03-09", nil)
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = os.Stat(filepath.Join(dir, MessagesDir))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveMessagesInvalidDate(t *testing.T) {
	w := NewWriter(t.TempDir(), kitlog.NewNopLogger())

	_, err := w.SaveMessages(model.Channel{Name: "backend"}, "03/09/2025",
		[]model.Message{testMessage("1.0001", time.Now())})
	require.Error(t, err)
	assert.Equal(t, apierror.KindSchema, apierror.KindOf(err))
}

func TestSaveMessagesDuplicateID(t *testing.T) {
	w := NewWriter(t.TempDir(), kitlog.NewNopLogger())

	ts := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	_, err := w.SaveMessages(model.Channel{Name: "backend"}, "2025-03-09",
		[]model.Message{testMessage("1.0001", ts), testMessage("1.0001", ts.Add(time.Second))})
	require.Error(t, err)
	assert.Equal(t, apierror.KindSchema, apierror.KindOf(err))
}

func TestSaveMessagesIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, kitlog.NewNopLogger()).WithClock(testClock)
	ch := model.Channel{Name: "backend"}

	ts := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	batch := []model.Message{testMessage("1.0002", ts.Add(time.Minute)), testMessage("1.0001", ts)}

	path, err := w.SaveMessages(ch, "2025-03-09", batch)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	// rewriting the same batch (any input order) is byte-identical
	shuffled := []model.Message{batch[1], batch[0]}
	_, err = w.SaveMessages(ch, "2025-03-09", shuffled)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, DataFileName, entries[0].Name())
}

func TestSaveUsersRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, kitlog.NewNopLogger()).WithClock(testClock)

	users := map[string]*model.User{
		"U2": {ID: "U2", Name: "bob", IsBot: true},
		"U1": {ID: "U1", Name: "jane", RealName: "Jane Doe", Email: "jane@example.com"},
	}
	path, err := w.SaveUsers(users)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, UsersFileName), path)

	got, err := NewReader(dir, kitlog.NewNopLogger()).ReadCachedUsers()
	require.NoError(t, err)
	require.Len(t, got, 2)

	jane := got["U1"]
	assert.Equal(t, "Jane Doe", *jane.UserRealName)
	assert.Equal(t, "jane@example.com", *jane.UserEmail)
	assert.False(t, jane.IsBot)
	assert.Equal(t, "2025-03-10T12:00:00Z", jane.CachedAt)

	assert.True(t, got["U2"].IsBot)
	assert.Equal(t, jane.CachedAt, got["U2"].CachedAt)
}

func TestSaveUsersEmptyInput(t *testing.T) {
	w := NewWriter(t.TempDir(), kitlog.NewNopLogger())
	path, err := w.SaveUsers(nil)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestSaveIssueTickets(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, kitlog.NewNopLogger()).WithClock(testClock)

	pts := int64(5)
	tickets := []model.Ticket{
		{TicketID: "PRD-123", Summary: "fix the thing", Status: "Open", StoryPoints: &pts,
			Comments: map[string]int{"Jane Doe": 2}},
		{TicketID: "AB-1", Summary: "other"},
	}
	path, err := w.SaveIssueTickets("2025-03-09", tickets)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "issue_tickets", "dt=2025-03-09", "data.parquet"), path)

	rows, err := readRows[TicketRow](path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// sorted by ticket id
	assert.Equal(t, "AB-1", rows[0].TicketID)
	assert.Equal(t, "PRD-123", rows[1].TicketID)

	got := rows[1]
	assert.Equal(t, "fix the thing", got.Summary)
	require.NotNil(t, got.StoryPoints)
	assert.Equal(t, int64(5), *got.StoryPoints)
	// the per-author comment map survives the round trip
	assert.Equal(t, map[string]int64{"Jane Doe": 2}, got.Comments)
	assert.Equal(t, int64(2), got.TotalComments)
	assert.Equal(t, "2025-03-10T12:00:00Z", got.CachedAt)
	assert.Empty(t, got.Blocks)
}
