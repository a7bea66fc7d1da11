package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"

	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
	"github.com/zbigniewsiwiec/slack-intel/pkg/model"
)

var dateRegexp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Writer persists entities to the partitioned dataset. Each call produces
// exactly one file; re-invoking with the same partition replaces it.
// Partition writes go to a temp file in the target directory and are
// renamed into place. Writes to the same partition path are serialized;
// different partitions may be written concurrently.
type Writer struct {
	root   string
	logger kitlog.Logger

	// injected for deterministic cached_at in tests
	now func() time.Time

	mtx   sync.Mutex
	locks map[string]*sync.Mutex
}

func NewWriter(root string, logger kitlog.Logger) *Writer {
	return &Writer{
		root:   root,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// WithClock overrides the cached_at clock.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

func (w *Writer) pathLock(path string) *sync.Mutex {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	l, ok := w.locks[path]
	if !ok {
		l = &sync.Mutex{}
		w.locks[path] = l
	}
	return l
}

// SaveMessages writes one (dt, channel) partition. Rows are sorted by
// (timestamp, message_id) so identical batches produce identical files.
// Empty input writes nothing and returns "". Duplicate message ids within
// the partition indicate a bug upstream and fail with a schema error.
func (w *Writer) SaveMessages(channel model.Channel, dt string, msgs []model.Message) (string, error) {
	if !dateRegexp.MatchString(dt) {
		return "", apierror.Newf(apierror.KindSchema, "invalid partition date %q, expected YYYY-MM-DD", dt)
	}
	if len(msgs) == 0 {
		return "", nil
	}

	rows := make([]MessageRow, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))
	for i := range msgs {
		row := RowFromMessage(&msgs[i])
		if _, dup := seen[row.MessageID]; dup {
			return "", apierror.Newf(apierror.KindSchema,
				"duplicate message_id %s in partition dt=%s/channel=%s", row.MessageID, dt, channel.Alias())
		}
		seen[row.MessageID] = struct{}{}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Timestamp != rows[j].Timestamp {
			return rows[i].Timestamp < rows[j].Timestamp
		}
		return rows[i].MessageID < rows[j].MessageID
	})

	path := filepath.Join(w.root, MessagesDir,
		fmt.Sprintf("dt=%s", dt), fmt.Sprintf("channel=%s", channel.Alias()), DataFileName)
	if err := writePartition(w, path, rows); err != nil {
		return "", err
	}

	level.Debug(w.logger).Log("msg", "wrote message partition", "path", path, "rows", len(rows))
	return path, nil
}

// SaveUsers flushes the user cache to <root>/users.parquet with a uniform
// cached_at. Empty input writes nothing.
func (w *Writer) SaveUsers(users map[string]*model.User) (string, error) {
	if len(users) == 0 {
		return "", nil
	}

	cachedAt := w.now().UTC()
	rows := make([]UserRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, RowFromUser(u, cachedAt))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })

	path := filepath.Join(w.root, UsersFileName)
	if err := writePartition(w, path, rows); err != nil {
		return "", err
	}

	level.Debug(w.logger).Log("msg", "wrote user cache", "path", path, "rows", len(rows))
	return path, nil
}

// SaveIssueTickets writes the enrichment output for dt. Tickets missing a
// cached_at get the writer's clock, uniform within the batch.
func (w *Writer) SaveIssueTickets(dt string, tickets []model.Ticket) (string, error) {
	if !dateRegexp.MatchString(dt) {
		return "", apierror.Newf(apierror.KindSchema, "invalid partition date %q, expected YYYY-MM-DD", dt)
	}
	if len(tickets) == 0 {
		return "", nil
	}

	cachedAt := w.now().UTC()
	rows := make([]TicketRow, 0, len(tickets))
	for i := range tickets {
		t := tickets[i]
		if t.CachedAt.IsZero() {
			t.CachedAt = cachedAt
		}
		rows = append(rows, RowFromTicket(&t))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TicketID < rows[j].TicketID })

	path := filepath.Join(w.root, TicketsDir, fmt.Sprintf("dt=%s", dt), DataFileName)
	if err := writePartition(w, path, rows); err != nil {
		return "", err
	}

	level.Debug(w.logger).Log("msg", "wrote ticket partition", "path", path, "rows", len(rows))
	return path, nil
}

// writePartition writes rows to a temp file next to path and renames it
// into place, so readers never observe a torn file.
func writePartition[T any](w *Writer, path string, rows []T) error {
	l := w.pathLock(path)
	l.Lock()
	defer l.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apierror.New(apierror.KindIO, errors.Wrap(err, "creating partition directory"))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp")
	if err != nil {
		return apierror.New(apierror.KindIO, errors.Wrap(err, "creating temp file"))
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	pw := parquet.NewGenericWriter[T](tmp)
	if _, err := pw.Write(rows); err != nil {
		tmp.Close()
		return apierror.New(apierror.KindIO, errors.Wrap(err, "writing rows"))
	}
	if err := pw.Close(); err != nil {
		tmp.Close()
		return apierror.New(apierror.KindIO, errors.Wrap(err, "closing parquet writer"))
	}
	if err := tmp.Close(); err != nil {
		return apierror.New(apierror.KindIO, errors.Wrap(err, "closing temp file"))
	}

	if err := os.Rename(tmpName, path); err != nil {
		return apierror.New(apierror.KindIO, errors.Wrap(err, "renaming partition into place"))
	}
	return nil
}
