package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore is a file-backed store for single-node deployments. Each event is
// one JSON file; per-item head hashes live in head_<item>.hash files. A mutex
// serializes appends, which keeps the chains consistent under concurrent
// assignment calls within one process.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) *FileStore {
	_ = os.MkdirAll(dir, 0o755)
	return &FileStore{dir: dir}
}

func (f *FileStore) Ping(ctx context.Context) error {
	_, err := os.Stat(f.dir)
	return err
}

func (f *FileStore) AppendEvent(ctx context.Context, ev *AssignmentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := seal(ev, f.readHead(ev.PRItemID)); err != nil {
		return err
	}

	b, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	path := filepath.Join(f.dir, fmt.Sprintf("event_%s.json", ev.ID))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write event file: %w", err)
	}
	if err := os.WriteFile(f.headPath(ev.PRItemID), []byte(ev.Hash), 0o644); err != nil {
		return fmt.Errorf("write head file: %w", err)
	}
	return nil
}

func (f *FileStore) GetEvent(ctx context.Context, id string) (*AssignmentEvent, error) {
	path := filepath.Join(f.dir, fmt.Sprintf("event_%s.json", id))
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var ev AssignmentEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", id, err)
	}
	return &ev, nil
}

func (f *FileStore) ListByItem(ctx context.Context, prItemID string) ([]AssignmentEvent, error) {
	events, err := f.readAll()
	if err != nil {
		return nil, err
	}
	var out []AssignmentEvent
	for _, ev := range events {
		if ev.PRItemID == prItemID {
			out = append(out, ev)
		}
	}
	sortByTs(out)
	return out, nil
}

func (f *FileStore) ListRange(ctx context.Context, start, end time.Time) ([]AssignmentEvent, error) {
	events, err := f.readAll()
	if err != nil {
		return nil, err
	}
	var out []AssignmentEvent
	for _, ev := range events {
		if !ev.Ts.Before(start) && ev.Ts.Before(end) {
			out = append(out, ev)
		}
	}
	sortByTs(out)
	return out, nil
}

func (f *FileStore) readAll() ([]AssignmentEvent, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []AssignmentEvent
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "event_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			return nil, err
		}
		var ev AssignmentEvent
		if err := json.Unmarshal(b, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *FileStore) headPath(prItemID string) string {
	return filepath.Join(f.dir, fmt.Sprintf("head_%s.hash", prItemID))
}

func (f *FileStore) readHead(prItemID string) string {
	b, err := os.ReadFile(f.headPath(prItemID))
	if err != nil {
		return ""
	}
	return string(b)
}
