//go:generate go run go.uber.org/mock/mockgen -source=file.go -destination=../mocks/mock_file_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IFileRepository interface {
	StoreFile(file domain.FileUpload) error
	GetFile(id uuid.UUID) (domain.FileUpload, error)
}

// FileRepository keeps the metadata of uploaded attachments under "file:{uuid}".
// The bytes themselves live in the object store.
type FileRepository struct {
	db *badger.DB
}

func NewFileRepository(db *badger.DB) FileRepository {
	return FileRepository{db: db}
}

type diskFile struct {
	ID               uuid.UUID `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	StoredFilename   string    `json:"stored_filename"`
	Size             int64     `json:"size"`
	ContentType      string    `json:"content_type"`
	PublicURL        string    `json:"public_url"`
	UploaderID       int64     `json:"uploader_id"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

func fileKey(id uuid.UUID) []byte {
	return []byte("file:" + id.String())
}

func (f FileRepository) StoreFile(file domain.FileUpload) error {
	err := f.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, fileKey(file.ID), diskFile{
			ID:               file.ID,
			OriginalFilename: file.OriginalFilename,
			StoredFilename:   file.StoredFilename,
			Size:             file.Size,
			ContentType:      file.ContentType,
			PublicURL:        file.PublicURL,
			UploaderID:       int64(file.UploaderID),
			UploadedAt:       file.UploadedAt,
		})
	})
	return translate(err, errors.ErrFileNotFound)
}

func (f FileRepository) GetFile(id uuid.UUID) (domain.FileUpload, error) {
	var df diskFile
	err := f.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, fileKey(id), &df)
	})
	if err != nil {
		return domain.FileUpload{}, translate(err, errors.ErrFileNotFound)
	}
	return domain.FileUpload{
		ID:               df.ID,
		OriginalFilename: df.OriginalFilename,
		StoredFilename:   df.StoredFilename,
		Size:             df.Size,
		ContentType:      df.ContentType,
		PublicURL:        df.PublicURL,
		UploaderID:       domain.UserID(df.UploaderID),
		UploadedAt:       df.UploadedAt.UTC(),
	}, nil
}
