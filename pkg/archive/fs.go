package archive

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// FSStore keeps archive files below root on an afero filesystem. The token is
// the hex sha1 of the stored bytes. Writers in this process are serialized;
// the store is not safe for several processes sharing one directory.
type FSStore struct {
	fs   afero.Fs
	root string
	mu   sync.Mutex
}

// NewFSStore creates a store rooted at root
func NewFSStore(fsys afero.Fs, root string) *FSStore {
	return &FSStore{fs: fsys, root: root}
}

// NewOsFSStore creates a store on the local disk
func NewOsFSStore(root string) *FSStore {
	return NewFSStore(afero.NewOsFs(), root)
}

func (s *FSStore) GetContent(ctx context.Context, path string) (Content, error) {
	if err := ctx.Err(); err != nil {
		return Content{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(path)
}

func (s *FSStore) PutContent(ctx context.Context, path string, data []byte, token, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(path)
	switch {
	case errors.Is(err, ErrNotFound):
		if token != "" {
			return fmt.Errorf("%w: %s no longer exists", ErrConflict, path)
		}
	case err != nil:
		return err
	case current.Token != token:
		return fmt.Errorf("%w: %s", ErrConflict, path)
	}

	full := s.resolve(path)
	if err := s.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmp := full + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := s.fs.Rename(tmp, full); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func (s *FSStore) read(path string) (Content, error) {
	data, err := afero.ReadFile(s.fs, s.resolve(path))
	if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
		return Content{}, ErrNotFound
	}
	if err != nil {
		return Content{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Content{Data: data, Token: contentToken(data)}, nil
}

// resolve maps a store path below root; ".." cannot escape it.
func (s *FSStore) resolve(path string) string {
	return filepath.Join(s.root, filepath.Clean("/"+path))
}

func contentToken(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
