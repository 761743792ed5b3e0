package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var ErrNotFound = errors.New("blob not found")

// Store keeps uploaded bytes under a single directory. Names are generated on
// save so client supplied filenames never reach the filesystem.
type Store struct {
	fs  afero.Fs
	dir string
}

func New(fs afero.Fs, dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("blob directory is required")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory %s: %w", dir, err)
	}
	return &Store{fs: fs, dir: dir}, nil
}

// Save copies r into a new blob and returns its generated name and size.
// The extension of originalName is kept so downstream tools can sniff the type.
func (s *Store) Save(ctx context.Context, originalName string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(originalName))
	f, err := s.fs.OpenFile(s.Path(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("create blob: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(s.Path(name))
		return "", 0, fmt.Errorf("write blob %s: %w", name, err)
	}
	return name, n, nil
}

func (s *Store) Read(_ context.Context, name string) ([]byte, error) {
	b, err := afero.ReadFile(s.fs, s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", name, err)
	}
	return b, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *Store) Delete(_ context.Context, name string) error {
	err := s.fs.Remove(s.Path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	return nil
}

func (s *Store) Exists(_ context.Context, name string) (bool, error) {
	return afero.Exists(s.fs, s.Path(name))
}

// Path returns the location of a blob on the underlying filesystem.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}
