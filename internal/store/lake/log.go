package lake

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	logDirName = "_delta_log"

	// Readers and writers of this table only understand protocol 1/2.
	readerVersion = 1
	writerVersion = 2
)

// action is one line of a commit file. Exactly one field is set.
type action struct {
	Protocol   *protocolAction   `json:"protocol,omitempty"`
	MetaData   *metaDataAction   `json:"metaData,omitempty"`
	Add        *addAction        `json:"add,omitempty"`
	Remove     *removeAction     `json:"remove,omitempty"`
	CommitInfo *commitInfoAction `json:"commitInfo,omitempty"`
}

type protocolAction struct {
	MinReaderVersion int `json:"minReaderVersion"`
	MinWriterVersion int `json:"minWriterVersion"`
}

type formatSpec struct {
	Provider string            `json:"provider"`
	Options  map[string]string `json:"options"`
}

type metaDataAction struct {
	ID               string            `json:"id"`
	Format           formatSpec        `json:"format"`
	SchemaString     string            `json:"schemaString"`
	PartitionColumns []string          `json:"partitionColumns"`
	Configuration    map[string]string `json:"configuration"`
	CreatedTime      int64             `json:"createdTime"`
}

type addAction struct {
	Path             string            `json:"path"`
	PartitionValues  map[string]string `json:"partitionValues"`
	Size             int64             `json:"size"`
	ModificationTime int64             `json:"modificationTime"`
	DataChange       bool              `json:"dataChange"`
	Stats            string            `json:"stats,omitempty"`
}

type removeAction struct {
	Path              string `json:"path"`
	DeletionTimestamp int64  `json:"deletionTimestamp"`
	DataChange        bool   `json:"dataChange"`
}

type commitInfoAction struct {
	Timestamp           int64             `json:"timestamp"`
	Operation           string            `json:"operation"`
	OperationParameters map[string]string `json:"operationParameters,omitempty"`
	TxnID               string            `json:"txnId,omitempty"`
}

type fileStats struct {
	NumRecords int64 `json:"numRecords"`
}

// schemaField mirrors one entry of the table's struct schema string.
type schemaField struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Nullable bool           `json:"nullable"`
	Metadata map[string]any `json:"metadata"`
}

type schemaStruct struct {
	Type   string        `json:"type"`
	Fields []schemaField `json:"fields"`
}

func versionFileName(v int64) string {
	return fmt.Sprintf("%020d.json", v)
}

func parseVersionFileName(name string) (int64, bool) {
	base, ok := strings.CutSuffix(name, ".json")
	if !ok || len(base) != 20 {
		return 0, false
	}
	v, err := strconv.ParseInt(base, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// listVersions returns every committed version in ascending order.
func listVersions(logDir string) ([]int64, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return nil, err
	}
	var versions []int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if v, ok := parseVersionFileName(e.Name()); ok {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// readVersion parses one commit file.
func readVersion(logDir string, v int64) ([]action, error) {
	data, err := os.ReadFile(filepath.Join(logDir, versionFileName(v)))
	if err != nil {
		return nil, fmt.Errorf("read version %d: %w", v, err)
	}

	var actions []action
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var a action
		if err := json.Unmarshal(sc.Bytes(), &a); err != nil {
			return nil, fmt.Errorf("version %d line %d: %w", v, line, err)
		}
		actions = append(actions, a)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read version %d: %w", v, err)
	}
	return actions, nil
}

// writeVersion publishes actions as version v. The file is fully written
// under a temporary name and then hard-linked into place, so readers never
// see a partial commit and an existing version is never replaced. A lost
// race returns an error matching fs.ErrExist.
func writeVersion(logDir string, v int64, txnID string, actions []action) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, a := range actions {
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("encode version %d: %w", v, err)
		}
	}

	final := filepath.Join(logDir, versionFileName(v))
	if _, err := os.Stat(final); err == nil {
		return fmt.Errorf("version %d: %w", v, fs.ErrExist)
	}

	tmp := filepath.Join(logDir, fmt.Sprintf(".%s.%s.tmp", versionFileName(v), txnID))
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create version %d: %w", v, err)
	}
	defer os.Remove(tmp)

	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("write version %d: %w", v, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync version %d: %w", v, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close version %d: %w", v, err)
	}

	if err := os.Link(tmp, final); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("version %d: %w", v, fs.ErrExist)
		}
		return fmt.Errorf("publish version %d: %w", v, err)
	}
	return nil
}
