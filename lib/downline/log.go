package downline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"bonuswatch-backend/lib/scrapers/merchant"
)

// Log is the deduplicated CSV sink for downline rows. Opening it
// preloads the identity keys of every row already in the file, so
// appends across separate runs stay unique. Safe for concurrent
// appenders.
type Log struct {
	path string

	mu   sync.Mutex
	seen map[string]struct{}
}

func OpenLog(path string) (*Log, error) {
	l := &Log{path: path, seen: map[string]struct{}{}}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// a mangled log means dedup is best-effort for this run
			slog.Warn("failed to preload downline csv", "path", path, "err", err)
			break
		}
		if first {
			first = false
			continue
		}
		if len(row) != len(Header()) {
			continue
		}
		amount, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			amount = 0
		}
		count, err := strconv.Atoi(row[3])
		if err != nil {
			count = 0
		}
		l.seen[Downline{
			URL: row[0], ID: row[1], Name: row[2],
			Count: count, Amount: amount, RegisterDateTime: row[5],
		}.key()] = struct{}{}
	}
	return l, nil
}

// Append writes the rows not already present in the log and reports how
// many were new.
func (l *Log) Append(rows []Downline) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var fresh []Downline
	for _, row := range rows {
		key := row.key()
		if _, ok := l.seen[key]; ok {
			continue
		}
		l.seen[key] = struct{}{}
		fresh = append(fresh, row)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	err := os.MkdirAll(filepath.Dir(l.path), 0755)
	if err != nil {
		return 0, err
	}
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		err = writer.Write(Header())
		if err != nil {
			return 0, err
		}
	}
	for _, row := range fresh {
		err = writer.Write(row.Record())
		if err != nil {
			return 0, err
		}
	}
	writer.Flush()
	return len(fresh), writer.Error()
}

// Harvest walks the paginated downline endpoint for one authenticated
// site and appends what it finds to the log. Pagination stops at the
// first page that contributes nothing new, which also terminates sites
// that serve the same page forever.
func Harvest(ctx context.Context, client *merchant.Client, session merchant.Session, siteURL string, log *Log) (int, error) {
	total := 0
	for page := 0; ; page++ {
		records, err := client.DownlinePage(ctx, session, page)
		if err != nil {
			return total, fmt.Errorf("page %d: %w", page, err)
		}

		rows := make([]Downline, 0, len(records))
		for _, raw := range records {
			rows = append(rows, Normalize(raw, siteURL))
		}
		added, err := log.Append(rows)
		if err != nil {
			return total, err
		}
		if added == 0 {
			break
		}
		total += added

		slog.DebugContext(ctx, "downline page harvested",
			"site", siteURL, "page", page, "new", added)
	}
	return total, nil
}
