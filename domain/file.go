package domain

import (
	"time"

	"github.com/google/uuid"
)

type FileUpload struct {
	ID               uuid.UUID
	OriginalFilename string
	StoredFilename   string
	Size             int64
	ContentType      string
	PublicURL        string
	UploaderID       UserID
	UploadedAt       time.Time
}
