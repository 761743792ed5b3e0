package blob

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveReadDelete(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s, err := New(fs, "/uploads")
	require.NoError(t, err)

	name, size, err := s.Save(ctx, "Scan 01.PDF", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)
	assert.Equal(t, int64(13), size)
	assert.Equal(t, ".pdf", filepath.Ext(name))
	assert.NotContains(t, name, "Scan")

	ok, err := s.Exists(ctx, name)
	require.NoError(t, err)
	assert.True(t, ok)

	b, err := s.Read(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(b))

	require.NoError(t, s.Delete(ctx, name))
	ok, err = s.Exists(ctx, name)
	require.NoError(t, err)
	assert.False(t, ok)

	// second delete is a no-op
	require.NoError(t, s.Delete(ctx, name))

	_, err = s.Read(ctx, name)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveGeneratesDistinctNames(t *testing.T) {
	s, err := New(afero.NewMemMapFs(), "/uploads")
	require.NoError(t, err)
	a, _, err := s.Save(context.Background(), "x.png", strings.NewReader("a"))
	require.NoError(t, err)
	b, _, err := s.Save(context.Background(), "x.png", strings.NewReader("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSaveRemovesPartialBlob(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := New(fs, "/uploads")
	require.NoError(t, err)

	_, _, err = s.Save(context.Background(), "x.png", failingReader{})
	require.Error(t, err)

	entries, err := afero.ReadDir(fs, "/uploads")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPathStaysInsideDirectory(t *testing.T) {
	s, err := New(afero.NewMemMapFs(), "/uploads")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/uploads", "passwd"), s.Path("../../etc/passwd"))
}

func TestNewRequiresDirectory(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), "")
	assert.Error(t, err)
}
