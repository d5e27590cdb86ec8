// Package storage keeps uploaded attachments on the local disk.
package storage

import (
	"bufio"
	"chat-relay/domain/mimetypes"
	"chat-relay/errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffSize is how many leading bytes are inspected to detect the content type.
const sniffSize = 3072

// StoredObject describes a file written by DiskStore.
type StoredObject struct {
	Name        string
	Size        int64
	ContentType string
	URL         string
}

// DiskStore writes attachments under dir with a random name and serves them back
// under baseURL + "/uploads/".
type DiskStore struct {
	dir     string
	baseURL string
	maxSize int64
	allowed []mimetypes.MIME
	log     *slog.Logger
}

func NewDiskStore(dir, baseURL string, maxSize int64, log *slog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
		allowed: mimetypes.Attachments,
		log:     log,
	}, nil
}

// Save sniffs the content type from the first bytes, rejects what is not allowed,
// then streams the content to disk. Nothing is left behind on failure.
func (d *DiskStore) Save(r io.Reader) (StoredObject, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	head, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return StoredObject{}, err
	}
	if len(head) == 0 {
		return StoredObject{}, fmt.Errorf("%w: empty file", errors.ErrValidation)
	}

	detected := mimetype.Detect(head)
	contentType, ok := mimetypes.Allowed(detected.String(), d.allowed)
	if !ok {
		return StoredObject{}, fmt.Errorf("%w: %s", errors.ErrUnsupportedMediaType, contentType)
	}

	name := uuid.NewString() + detected.Extension()
	target := filepath.Join(d.dir, name)
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StoredObject{}, err
	}

	written, err := io.Copy(file, io.LimitReader(br, d.maxSize+1))
	closeErr := file.Close()
	switch {
	case err == nil && closeErr != nil:
		err = closeErr
	case err == nil && written > d.maxSize:
		err = fmt.Errorf("%w: more than %d bytes", errors.ErrFileTooLarge, d.maxSize)
	}
	if err != nil {
		if rmErr := os.Remove(target); rmErr != nil {
			d.log.Warn("Unable to remove partial upload", "file", target, "error", rmErr)
		}
		return StoredObject{}, err
	}

	d.log.Debug("Attachment stored", "file", name, "size", written, "content_type", contentType)
	return StoredObject{
		Name:        name,
		Size:        written,
		ContentType: string(contentType),
		URL:         d.baseURL + "/uploads/" + name,
	}, nil
}

// Path resolves a stored name to its file. Names that would escape dir are rejected.
func (d *DiskStore) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", errors.ErrFileNotFound
	}
	target := filepath.Join(d.dir, name)
	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return "", errors.ErrFileNotFound
	}
	return target, nil
}
