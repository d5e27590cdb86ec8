//go:generate go run go.uber.org/mock/mockgen -source=upload_service.go -destination=../mocks/mock_upload_service.go -package=mocks
package services

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"chat-relay/storage"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ObjectStore holds the bytes of uploaded files.
type ObjectStore interface {
	Save(r io.Reader) (storage.StoredObject, error)
}

type FileView struct {
	ID          uuid.UUID     `json:"id"`
	Filename    string        `json:"filename"`
	Size        int64         `json:"size"`
	ContentType string        `json:"contentType"`
	URL         string        `json:"url"`
	UploaderID  domain.UserID `json:"uploaderId"`
	UploadedAt  time.Time     `json:"uploadedAt"`
}

func ToFileView(f domain.FileUpload) FileView {
	return FileView{
		ID:          f.ID,
		Filename:    f.OriginalFilename,
		Size:        f.Size,
		ContentType: f.ContentType,
		URL:         f.PublicURL,
		UploaderID:  f.UploaderID,
		UploadedAt:  f.UploadedAt,
	}
}

// UploadService stores attachments. The returned URL is what clients put in a
// message's attachmentRef.
type UploadService struct {
	store ObjectStore
	files repositories.IFileRepository
	clock clockwork.Clock
	log   *slog.Logger
}

func NewUploadService(store ObjectStore, files repositories.IFileRepository, clock clockwork.Clock, log *slog.Logger) *UploadService {
	return &UploadService{store: store, files: files, clock: clock, log: log}
}

func (s *UploadService) Upload(uploader domain.UserID, filename string, r io.Reader) (domain.FileUpload, error) {
	obj, err := s.store.Save(r)
	if err != nil {
		return domain.FileUpload{}, err
	}
	upload := domain.FileUpload{
		ID:               uuid.New(),
		OriginalFilename: filepath.Base(filename),
		StoredFilename:   obj.Name,
		Size:             obj.Size,
		ContentType:      obj.ContentType,
		PublicURL:        obj.URL,
		UploaderID:       uploader,
		UploadedAt:       s.clock.Now().UTC(),
	}
	if err := s.files.StoreFile(upload); err != nil {
		s.log.Error("Unable to record upload", "file", obj.Name, "error", err)
		return domain.FileUpload{}, err
	}
	s.log.Info("File uploaded", "file_id", upload.ID, "user_id", uploader, "size", upload.Size)
	return upload, nil
}

func (s *UploadService) GetFile(id uuid.UUID) (domain.FileUpload, error) {
	return s.files.GetFile(id)
}
