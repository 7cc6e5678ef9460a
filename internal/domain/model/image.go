package model

import (
	"time"

	"github.com/ivankudzin/wolfpost/internal/domain/enums"
)

// Image is a user-submitted picture. The binary payload lives in object
// storage under ObjectKey; postgres keeps the metadata and the
// moderation/distribution state.
type Image struct {
	ID               int64
	FileName         string
	ObjectKey        string
	FileSize         int64
	MimeType         string
	UploadedBy       int64
	Status           enums.ImageStatus
	UploadedAt       time.Time
	ModeratedAt      *time.Time
	ModeratedBy      *int64
	ModerationReason *string
	SendCount        int
	LastSent         *time.Time
}

// Moderated reports whether the image has left PENDING.
func (i Image) Moderated() bool {
	return i.Status.Terminal()
}
