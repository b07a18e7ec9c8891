package lake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/roach88/fsindex/internal/record"
)

// ErrConflict is returned when every commit attempt lost the race for the
// next log version.
var ErrConflict = errors.New("concurrent commit conflict")

// publishVersion is replaced in tests to force lost races.
var publishVersion = writeVersion

// tableSchema is the fixed column set, in the table's schema string form.
var tableSchema = schemaStruct{
	Type: "struct",
	Fields: []schemaField{
		{Name: record.ColumnPath, Type: "string", Nullable: false, Metadata: map[string]any{}},
		{Name: record.ColumnInstant, Type: "string", Nullable: false, Metadata: map[string]any{}},
		{Name: record.ColumnTimezone, Type: "string", Nullable: false, Metadata: map[string]any{}},
	},
}

// Snapshot is the table state as of one log version.
type Snapshot struct {
	Version int64

	// Files are the live data files in the order they were added.
	Files []string
}

// Table is one handle on a table directory. Each handle pins its own
// snapshot; Refresh moves it to the newest committed version.
type Table struct {
	root   string
	env    Env
	logger *slog.Logger

	mu    sync.Mutex
	snap  Snapshot
	index map[string]int
}

// openTable attaches to the table at root, creating it when the log is
// missing. Creation races are resolved by the log: whoever publishes
// version 0 wins and everyone else attaches.
func openTable(ctx context.Context, root string, env Env) (*Table, error) {
	logDir := filepath.Join(root, logDirName)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create table directory: %w", err)
	}

	t := &Table{root: root, env: env, logger: env.Logger, snap: Snapshot{Version: -1}, index: map[string]int{}}

	versions, err := listVersions(logDir)
	if err != nil {
		return nil, fmt.Errorf("list log: %w", err)
	}
	if len(versions) == 0 {
		if err := t.create(); err != nil && !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
	}

	if err := t.Refresh(ctx); err != nil {
		return nil, err
	}
	if t.snap.Version < 0 {
		return nil, fmt.Errorf("table at %s has no version 0", root)
	}
	return t, nil
}

func (t *Table) logDir() string {
	return filepath.Join(t.root, logDirName)
}

func (t *Table) create() error {
	schema, err := json.Marshal(tableSchema)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	now := t.env.Clock.Now().UnixMilli()
	actions := []action{
		{CommitInfo: &commitInfoAction{Timestamp: now, Operation: "CREATE TABLE"}},
		{Protocol: &protocolAction{MinReaderVersion: readerVersion, MinWriterVersion: writerVersion}},
		{MetaData: &metaDataAction{
			ID:               t.env.NewID(),
			Format:           formatSpec{Provider: "parquet", Options: map[string]string{}},
			SchemaString:     string(schema),
			PartitionColumns: []string{},
			Configuration:    map[string]string{},
			CreatedTime:      now,
		}},
	}
	if err := writeVersion(t.logDir(), 0, t.env.NewID(), actions); err != nil {
		return err
	}
	t.logger.Debug("lake table created", "root", t.root)
	return nil
}

// Snapshot returns a copy of the pinned snapshot.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{Version: t.snap.Version, Files: slices.Clone(t.snap.Files)}
}

// Refresh replays every version newer than the pinned one.
func (t *Table) Refresh(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshLocked(ctx)
}

func (t *Table) refreshLocked(ctx context.Context) error {
	versions, err := listVersions(t.logDir())
	if err != nil {
		return fmt.Errorf("list log: %w", err)
	}
	for _, v := range versions {
		if v <= t.snap.Version {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if v != t.snap.Version+1 {
			return fmt.Errorf("log gap: version %d follows %d", v, t.snap.Version)
		}
		actions, err := readVersion(t.logDir(), v)
		if err != nil {
			return err
		}
		if err := t.apply(v, actions); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) apply(v int64, actions []action) error {
	for _, a := range actions {
		switch {
		case a.Protocol != nil:
			if a.Protocol.MinReaderVersion > readerVersion {
				return fmt.Errorf("version %d requires reader protocol %d", v, a.Protocol.MinReaderVersion)
			}
		case a.MetaData != nil:
			if err := checkSchema(a.MetaData.SchemaString); err != nil {
				return fmt.Errorf("version %d: %w", v, err)
			}
		case a.Add != nil:
			if _, ok := t.index[a.Add.Path]; ok {
				continue
			}
			t.index[a.Add.Path] = len(t.snap.Files)
			t.snap.Files = append(t.snap.Files, a.Add.Path)
		case a.Remove != nil:
			i, ok := t.index[a.Remove.Path]
			if !ok {
				continue
			}
			t.snap.Files = slices.Delete(t.snap.Files, i, i+1)
			delete(t.index, a.Remove.Path)
			for j := i; j < len(t.snap.Files); j++ {
				t.index[t.snap.Files[j]] = j
			}
		}
	}
	t.snap.Version = v
	return nil
}

func checkSchema(s string) error {
	var got schemaStruct
	if err := json.Unmarshal([]byte(s), &got); err != nil {
		return fmt.Errorf("decode schema: %w", err)
	}
	have := make(map[string]string, len(got.Fields))
	for _, f := range got.Fields {
		have[f.Name] = f.Type
	}
	for _, f := range tableSchema.Fields {
		if have[f.Name] != f.Type {
			return fmt.Errorf("schema mismatch: column %s is %q, want %q", f.Name, have[f.Name], f.Type)
		}
	}
	return nil
}

// AppendRows writes rows to a new data file and commits it as the next
// version. Rows are persisted as given; callers validate.
func (t *Table) AppendRows(ctx context.Context, rows []record.Row) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(rows) == 0 {
		return t.snap.Version, nil
	}

	txnID := t.env.NewID()
	name := fmt.Sprintf("part-%s.parquet", txnID)
	full := filepath.Join(t.root, name)
	if err := parquet.WriteFile(full, rows); err != nil {
		os.Remove(full)
		return 0, fmt.Errorf("write data file: %w", err)
	}
	info, err := os.Stat(full)
	if err != nil {
		os.Remove(full)
		return 0, fmt.Errorf("stat data file: %w", err)
	}

	stats, _ := json.Marshal(fileStats{NumRecords: int64(len(rows))})
	now := t.env.Clock.Now()
	actions := []action{
		{CommitInfo: &commitInfoAction{
			Timestamp:           now.UnixMilli(),
			Operation:           "WRITE",
			OperationParameters: map[string]string{"mode": "Append"},
			TxnID:               txnID,
		}},
		{Add: &addAction{
			Path:             name,
			PartitionValues:  map[string]string{},
			Size:             info.Size(),
			ModificationTime: info.ModTime().UnixMilli(),
			DataChange:       true,
			Stats:            string(stats),
		}},
	}

	// Blind appends never conflict logically, so a lost race only means
	// catching up with the log and trying the next version.
	for attempt := 0; attempt <= t.env.CommitRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			os.Remove(full)
			return 0, err
		}
		if err := t.refreshLocked(ctx); err != nil {
			os.Remove(full)
			return 0, err
		}
		next := t.snap.Version + 1
		err := publishVersion(t.logDir(), next, txnID, actions)
		if err == nil {
			if err := t.apply(next, actions); err != nil {
				return 0, err
			}
			return next, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			os.Remove(full)
			return 0, err
		}
		t.logger.Debug("lake commit conflict, retrying", "version", next, "attempt", attempt+1)
	}

	os.Remove(full)
	return 0, fmt.Errorf("commit after %d attempts: %w", t.env.CommitRetries+1, ErrConflict)
}

// readFrame loads every row of the given data files, in file order.
func (t *Table) readFrame(ctx context.Context, files []string) ([]record.Row, error) {
	var frame []record.Row
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := parquet.ReadFile[record.Row](filepath.Join(t.root, name))
		if err != nil {
			return nil, fmt.Errorf("read data file %s: %w", name, err)
		}
		frame = append(frame, rows...)
	}
	return frame, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
