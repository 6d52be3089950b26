package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/zlnvch/notesync/models"
)

// MemoryPersister keeps the session for the lifetime of the process only.
type MemoryPersister struct {
	mu   sync.Mutex
	sess *models.Session
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (m *MemoryPersister) Load(ctx context.Context) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return models.Session{}, ErrNoSession
	}
	return *m.sess, nil
}

func (m *MemoryPersister) Save(ctx context.Context, sess models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = &sess
	return nil
}

func (m *MemoryPersister) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}

// FilePersister stores the session as a YAML document readable only by the
// current user.
type FilePersister struct {
	mu   sync.Mutex
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (f *FilePersister) Load(ctx context.Context) (models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Session{}, ErrNoSession
		}
		return models.Session{}, err
	}

	var sess models.Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return models.Session{}, fmt.Errorf("decode session file %s: %w", f.path, err)
	}
	if sess.IsZero() {
		return models.Session{}, ErrNoSession
	}
	return sess, nil
}

// Save replaces the file atomically via a temp file and rename.
func (f *FilePersister) Save(ctx context.Context, sess models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := yaml.Marshal(sess)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FilePersister) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
