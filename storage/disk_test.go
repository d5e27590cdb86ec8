package storage

import (
	"bytes"
	"chat-relay/errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// Smallest valid PNG header, enough for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newTestStore(t *testing.T, maxSize int64) (*DiskStore, string) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "http://localhost:8080/", maxSize, logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	return store, dir
}

func TestDiskStore_Save(t *testing.T) {
	req := require.New(t)
	store, dir := newTestStore(t, 1024)

	obj, err := store.Save(bytes.NewReader(pngHeader))
	req.NoError(err)
	req.Equal("image/png", obj.ContentType)
	req.Equal(int64(len(pngHeader)), obj.Size)
	req.True(strings.HasSuffix(obj.Name, ".png"))
	req.Equal("http://localhost:8080/uploads/"+obj.Name, obj.URL)

	content, err := os.ReadFile(filepath.Join(dir, obj.Name))
	req.NoError(err)
	req.Equal(pngHeader, content)

	path, err := store.Path(obj.Name)
	req.NoError(err)
	req.Equal(filepath.Join(dir, obj.Name), path)
}

func TestDiskStore_Rejections(t *testing.T) {
	req := require.New(t)
	store, dir := newTestStore(t, 10)

	_, err := store.Save(strings.NewReader("<html><body>hi</body></html>"))
	req.ErrorIs(err, errors.ErrUnsupportedMediaType)

	_, err = store.Save(strings.NewReader(""))
	req.ErrorIs(err, errors.ErrValidation)

	_, err = store.Save(strings.NewReader("plain text longer than ten bytes"))
	req.ErrorIs(err, errors.ErrFileTooLarge)

	entries, err := os.ReadDir(dir)
	req.NoError(err)
	req.Empty(entries, "rejected uploads must not leave files behind")
}

func TestDiskStore_Path(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore(t, 1024)

	for _, name := range []string{"", "../etc/passwd", ".hidden", "a/b.png", "missing.png"} {
		_, err := store.Path(name)
		req.ErrorIs(err, errors.ErrFileNotFound, name)
	}
}
