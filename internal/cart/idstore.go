package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// IDStore persists the cart identifier between visits: the only state that
// survives beyond a single session's memory. Implementations must be safe
// for concurrent use.
type IDStore interface {
	// Load returns the identifier stored under key, and whether one exists.
	Load(ctx context.Context, key string) (string, bool, error)
	// Save stores the identifier under key, overwriting any previous value.
	Save(ctx context.Context, key string, id string) error
}

// MemoryIDStore keeps identifiers in process memory. Used in tests and as
// the fallback when no durable path is configured.
type MemoryIDStore struct {
	mu  sync.RWMutex
	ids map[string]string
}

func NewMemoryIDStore() *MemoryIDStore {
	return &MemoryIDStore{ids: make(map[string]string)}
}

func (s *MemoryIDStore) Load(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ids[key]
	return id, ok, nil
}

func (s *MemoryIDStore) Save(_ context.Context, key string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[key] = id
	return nil
}

// FileIDStore persists identifiers as a flat JSON map on disk, surviving
// process restarts. Writes go through a temp file and rename so a crash
// never leaves a truncated map behind.
type FileIDStore struct {
	path string
	mu   sync.Mutex
}

func NewFileIDStore(path string) *FileIDStore {
	return &FileIDStore{path: path}
}

func (s *FileIDStore) Load(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.read()
	if err != nil {
		return "", false, err
	}
	id, ok := ids[key]
	return id, ok, nil
}

func (s *FileIDStore) Save(_ context.Context, key string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.read()
	if err != nil {
		return err
	}
	ids[key] = id
	return s.write(ids)
}

func (s *FileIDStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart id file: %w", err)
	}
	ids := make(map[string]string)
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode cart id file: %w", err)
	}
	return ids, nil
}

func (s *FileIDStore) write(ids map[string]string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode cart id file: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cart id dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cart-ids-*")
	if err != nil {
		return fmt.Errorf("create temp cart id file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cart id file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cart id file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace cart id file: %w", err)
	}
	return nil
}
