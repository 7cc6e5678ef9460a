package images

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/enums"
	"github.com/ivankudzin/wolfpost/internal/domain/model"
	pgrepo "github.com/ivankudzin/wolfpost/internal/repo/postgres"
	"github.com/ivankudzin/wolfpost/internal/services/media"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrFileTooLarge     = errors.New("file too large")
	ErrUnsupportedMime  = errors.New("unsupported file type")
	ErrNoApprovedImages = errors.New("no approved images available")
	ErrImageNotFound    = errors.New("image not found")
)

var allowedMimeTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

type Store interface {
	Create(ctx context.Context, img model.Image) (model.Image, error)
	GetByID(ctx context.Context, imageID int64) (model.Image, error)
	AcquireNextApproved(ctx context.Context) (model.Image, error)
	ListByStatus(ctx context.Context, status enums.ImageStatus) ([]model.Image, error)
	CountByUploader(ctx context.Context, userID int64) (int, error)
	CountByUploaderAndStatus(ctx context.Context, userID int64, status enums.ImageStatus) (int, error)
	Stats(ctx context.Context) (pgrepo.ImageStats, error)
}

type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	PutImage(ctx context.Context, key string, data []byte, contentType string) error
	GetImage(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type Service struct {
	store       Store
	storage     ObjectStorage
	logger      *zap.Logger
	maxFileSize int64
}

func NewService(store Store, storage ObjectStorage, logger *zap.Logger, maxFileSize int64) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:       store,
		storage:     storage,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

// Save validates the payload, stores it in the bucket and records the
// image as pending. The bucket object is rolled back when the record
// cannot be created.
func (s *Service) Save(ctx context.Context, uploaderID int64, fileName string, data []byte) (model.Image, error) {
	if uploaderID <= 0 || len(data) == 0 {
		return model.Image{}, ErrValidation
	}
	if s.store == nil || s.storage == nil {
		return model.Image{}, fmt.Errorf("image dependencies are not configured")
	}

	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return model.Image{}, ErrFileTooLarge
	}

	mimeType := sniffMime(data)
	if _, ok := allowedMimeTypes[mimeType]; !ok {
		return model.Image{}, ErrUnsupportedMime
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return model.Image{}, fmt.Errorf("ensure bucket: %w", err)
	}

	objectKey := media.BuildObjectKey(uploaderID, fileName)
	if err := s.storage.PutImage(ctx, objectKey, data, mimeType); err != nil {
		return model.Image{}, fmt.Errorf("put object: %w", err)
	}

	created, err := s.store.Create(ctx, model.Image{
		FileName:   strings.TrimSpace(fileName),
		ObjectKey:  objectKey,
		FileSize:   int64(len(data)),
		MimeType:   mimeType,
		UploadedBy: uploaderID,
	})
	if err != nil {
		_ = s.storage.Delete(ctx, objectKey)
		return model.Image{}, fmt.Errorf("create image record: %w", err)
	}

	s.logger.Info("image saved",
		zap.Int64("image_id", created.ID),
		zap.Int64("uploaded_by", uploaderID),
		zap.Int64("file_size", created.FileSize),
		zap.String("mime_type", mimeType),
	)

	return created, nil
}

// SelectNextImage atomically picks the least recently sent approved
// image and marks it sent. Concurrent dispatchers never pick the same
// row.
func (s *Service) SelectNextImage(ctx context.Context) (model.Image, error) {
	if s.store == nil {
		return model.Image{}, fmt.Errorf("image store is nil")
	}

	img, err := s.store.AcquireNextApproved(ctx)
	if err != nil {
		if errors.Is(err, pgrepo.ErrImageNotFound) {
			return model.Image{}, ErrNoApprovedImages
		}
		return model.Image{}, fmt.Errorf("acquire next approved image: %w", err)
	}

	return img, nil
}

// Payload fetches the stored bytes for an image record.
func (s *Service) Payload(ctx context.Context, img model.Image) ([]byte, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("object storage is nil")
	}
	if img.ObjectKey == "" {
		return nil, ErrValidation
	}

	return s.storage.GetImage(ctx, img.ObjectKey)
}

func (s *Service) Get(ctx context.Context, imageID int64) (model.Image, error) {
	if s.store == nil {
		return model.Image{}, fmt.Errorf("image store is nil")
	}

	img, err := s.store.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrImageNotFound) {
			return model.Image{}, ErrImageNotFound
		}
		return model.Image{}, fmt.Errorf("get image: %w", err)
	}

	return img, nil
}

func (s *Service) ListByStatus(ctx context.Context, status enums.ImageStatus) ([]model.Image, error) {
	if s.store == nil {
		return nil, fmt.Errorf("image store is nil")
	}
	if !status.Valid() {
		return nil, ErrValidation
	}

	return s.store.ListByStatus(ctx, status)
}

func (s *Service) UploadedCount(ctx context.Context, userID int64) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("image store is nil")
	}
	if userID <= 0 {
		return 0, ErrValidation
	}

	return s.store.CountByUploader(ctx, userID)
}

func (s *Service) ApprovedCount(ctx context.Context, userID int64) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("image store is nil")
	}
	if userID <= 0 {
		return 0, ErrValidation
	}

	return s.store.CountByUploaderAndStatus(ctx, userID, enums.ImageStatusApproved)
}

func (s *Service) Stats(ctx context.Context) (pgrepo.ImageStats, error) {
	if s.store == nil {
		return pgrepo.ImageStats{}, fmt.Errorf("image store is nil")
	}

	return s.store.Stats(ctx)
}

// NextForSending mirrors the rotation order applied by the acquisition
// query: never sent first, then oldest last_sent, ties broken by upload
// time and id. Only approved images participate.
func NextForSending(candidates []model.Image) *model.Image {
	var best *model.Image
	for i := range candidates {
		img := &candidates[i]
		if img.Status != enums.ImageStatusApproved {
			continue
		}
		if best == nil || sendsBefore(*img, *best) {
			best = img
		}
	}
	return best
}

func sendsBefore(a, b model.Image) bool {
	switch {
	case a.LastSent == nil && b.LastSent != nil:
		return true
	case a.LastSent != nil && b.LastSent == nil:
		return false
	case a.LastSent != nil && b.LastSent != nil && !a.LastSent.Equal(*b.LastSent):
		return a.LastSent.Before(*b.LastSent)
	}

	if !a.UploadedAt.Equal(b.UploadedAt) {
		return a.UploadedAt.Before(b.UploadedAt)
	}

	return a.ID < b.ID
}

func sniffMime(data []byte) string {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}

	mimeType := http.DetectContentType(head)
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	return mimeType
}
