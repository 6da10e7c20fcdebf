// Package history persists completed consultations as JSON lines so past
// verdicts can be reviewed from the CLI. One consultation per line; the file
// is append-only.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hupe1980/tribunal/consult"
)

// Store persists consultation results.
type Store interface {
	// Append records one completed consultation.
	Append(res *consult.Result) error

	// List returns recorded consultations, newest first. A limit of zero
	// or less returns all of them.
	List(limit int) ([]*consult.Result, error)
}

// FileStore is a JSONL-file Store. Safe for concurrent use within one
// process; cross-process appends rely on O_APPEND line atomicity.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore constructs a FileStore at the given path. The file and its
// parent directory are created on first append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Append implements Store.
func (s *FileStore) Append(res *consult.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// List implements Store. Lines that fail to decode are skipped so one
// corrupt entry cannot hide the rest of the history.
func (s *FileStore) List(limit int) ([]*consult.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var results []*consult.Result
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var res consult.Result
		if err := json.Unmarshal(line, &res); err != nil {
			continue
		}
		results = append(results, &res)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}

	// Newest first.
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
