package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	kitlog "github.com/go-kit/log"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"

	"github.com/zbigniewsiwiec/slack-intel/pkg/apierror"
	"github.com/zbigniewsiwiec/slack-intel/pkg/window"
)

// Reader reads partitions back out of the dataset. Missing partitions are
// empty results, not errors; rows come back sorted by (timestamp,
// message_id) ascending.
type Reader struct {
	root   string
	logger kitlog.Logger
}

func NewReader(root string, logger kitlog.Logger) *Reader {
	return &Reader{root: root, logger: logger}
}

// resolveChannelDir applies channel alias fallback: try the literal
// channel=<name> partition, then channel=channel_<name>. Exactly two
// attempts; "" when neither exists.
func (r *Reader) resolveChannelDir(channel, dt string) string {
	base := filepath.Join(r.root, MessagesDir, fmt.Sprintf("dt=%s", dt))

	literal := filepath.Join(base, fmt.Sprintf("channel=%s", channel), DataFileName)
	if fileExists(literal) {
		return literal
	}
	if !strings.HasPrefix(channel, "channel_") {
		prefixed := filepath.Join(base, fmt.Sprintf("channel=channel_%s", channel), DataFileName)
		if fileExists(prefixed) {
			return prefixed
		}
	}
	return ""
}

// ReadChannel reads one (channel, dt) partition.
func (r *Reader) ReadChannel(channel, dt string) ([]MessageRow, error) {
	path := r.resolveChannelDir(channel, dt)
	if path == "" {
		return nil, nil
	}

	rows, err := readRows[MessageRow](path)
	if err != nil {
		return nil, err
	}
	sortRows(rows)
	return rows, nil
}

// ReadChannelRange concatenates every day in [dtStart, dtEnd] inclusive.
// Days without a partition are skipped silently.
func (r *Reader) ReadChannelRange(channel, dtStart, dtEnd string) ([]MessageRow, error) {
	days, err := window.DateRange(dtStart, dtEnd)
	if err != nil {
		return nil, apierror.New(apierror.KindConfig, err)
	}

	var all []MessageRow
	for _, dt := range days {
		rows, err := r.ReadChannel(channel, dt)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	sortRows(all)
	return all, nil
}

// ReadAllChannels reads every channel partition under one dt, tagging each
// row with its channel alias.
func (r *Reader) ReadAllChannels(dt string) ([]MessageRow, error) {
	base := filepath.Join(r.root, MessagesDir, fmt.Sprintf("dt=%s", dt))
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apierror.New(apierror.KindIO, errors.Wrap(err, "listing date partition"))
	}

	var all []MessageRow
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "channel=") {
			continue
		}
		alias := strings.TrimPrefix(e.Name(), "channel=")

		rows, err := readRows[MessageRow](filepath.Join(base, e.Name(), DataFileName))
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].ChannelName = alias
		}
		all = append(all, rows...)
	}
	sortRows(all)
	return all, nil
}

// ReadCachedUsers loads <root>/users.parquet keyed by user_id. A missing
// file is an empty map.
func (r *Reader) ReadCachedUsers() (map[string]UserRow, error) {
	path := filepath.Join(r.root, UsersFileName)
	if !fileExists(path) {
		return map[string]UserRow{}, nil
	}

	rows, err := readRows[UserRow](path)
	if err != nil {
		return nil, err
	}
	users := make(map[string]UserRow, len(rows))
	for _, row := range rows {
		users[row.UserID] = row
	}
	return users, nil
}

// ReadCachedTickets loads every issue_tickets partition keyed by ticket_id.
// Partitions are merged in dt order, so the most recently cached row for a
// ticket wins. No partitions is an empty map.
func (r *Reader) ReadCachedTickets() (map[string]TicketRow, error) {
	base := filepath.Join(r.root, TicketsDir)
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]TicketRow{}, nil
		}
		return nil, apierror.New(apierror.KindIO, errors.Wrap(err, "listing ticket partitions"))
	}

	dts := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "dt=") {
			dts = append(dts, e.Name())
		}
	}
	sort.Strings(dts)

	tickets := make(map[string]TicketRow)
	for _, dt := range dts {
		rows, err := readRows[TicketRow](filepath.Join(base, dt, DataFileName))
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			tickets[row.TicketID] = row
		}
	}
	return tickets, nil
}

// AuthorRow is the projection used for building user mappings over wide
// date windows without paying for the full message schema.
type AuthorRow struct {
	UserID       *string `parquet:"user_id,optional,snappy"`
	UserName     *string `parquet:"user_name,optional,snappy"`
	UserRealName *string `parquet:"user_real_name,optional,snappy"`
}

// ReadAuthors scans only the author columns of a channel over a date range.
func (r *Reader) ReadAuthors(channel, dtStart, dtEnd string) ([]AuthorRow, error) {
	days, err := window.DateRange(dtStart, dtEnd)
	if err != nil {
		return nil, apierror.New(apierror.KindConfig, err)
	}

	var all []AuthorRow
	for _, dt := range days {
		path := r.resolveChannelDir(channel, dt)
		if path == "" {
			continue
		}
		rows, err := readRows[AuthorRow](path)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

// PartitionStat describes one file in the dataset.
type PartitionStat struct {
	Path   string `json:"path"`
	Entity string `json:"entity"`
	Rows   int64  `json:"row_count"`
	Bytes  int64  `json:"size_bytes"`
}

// PartitionInfo summarizes the dataset.
type PartitionInfo struct {
	Partitions []PartitionStat `json:"partitions"`
	TotalRows  int64           `json:"total_rows"`
	TotalBytes int64           `json:"total_size_bytes"`
}

// PartitionInfo enumerates every Parquet file under the root. Unreadable
// files are skipped.
func (r *Reader) PartitionInfo() (PartitionInfo, error) {
	var info PartitionInfo

	addFile := func(path, entity string) {
		st, err := os.Stat(path)
		if err != nil {
			return
		}
		nrows, err := countRows(path)
		if err != nil {
			return
		}
		info.Partitions = append(info.Partitions, PartitionStat{
			Path:   path,
			Entity: entity,
			Rows:   nrows,
			Bytes:  st.Size(),
		})
		info.TotalRows += nrows
		info.TotalBytes += st.Size()
	}

	for _, entity := range []string{MessagesDir, TicketsDir} {
		root := filepath.Join(r.root, entity)
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".parquet") {
				return nil
			}
			addFile(path, entity)
			return nil
		})
	}
	if path := filepath.Join(r.root, UsersFileName); fileExists(path) {
		addFile(path, "users")
	}

	sort.Slice(info.Partitions, func(i, j int) bool { return info.Partitions[i].Path < info.Partitions[j].Path })
	return info, nil
}

func sortRows(rows []MessageRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Timestamp != rows[j].Timestamp {
			return rows[i].Timestamp < rows[j].Timestamp
		}
		return rows[i].MessageID < rows[j].MessageID
	})
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// readRows reads a whole file into T rows. T may be a projection of the
// file schema; only its columns are decoded.
func readRows[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apierror.New(apierror.KindIO, errors.Wrap(err, "opening partition"))
	}
	defer f.Close()

	pr := parquet.NewGenericReader[T](f)
	defer pr.Close()

	out := make([]T, 0, pr.NumRows())
	buf := make([]T, 128)
	for {
		n, err := pr.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, apierror.New(apierror.KindIO, errors.Wrapf(err, "reading %s", path))
		}
	}
}

func countRows(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return 0, err
	}
	return pf.NumRows(), nil
}
