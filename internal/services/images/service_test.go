package images

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/enums"
	"github.com/ivankudzin/wolfpost/internal/domain/model"
	pgrepo "github.com/ivankudzin/wolfpost/internal/repo/postgres"
)

var pngPayload = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

type storeStub struct {
	created    []model.Image
	createErr  error
	acquired   model.Image
	acquireErr error
}

func (s *storeStub) Create(_ context.Context, img model.Image) (model.Image, error) {
	if s.createErr != nil {
		return model.Image{}, s.createErr
	}
	img.ID = int64(len(s.created) + 1)
	img.Status = enums.ImageStatusPending
	s.created = append(s.created, img)
	return img, nil
}

func (s *storeStub) GetByID(_ context.Context, _ int64) (model.Image, error) {
	return model.Image{}, pgrepo.ErrImageNotFound
}

func (s *storeStub) AcquireNextApproved(_ context.Context) (model.Image, error) {
	if s.acquireErr != nil {
		return model.Image{}, s.acquireErr
	}
	return s.acquired, nil
}

func (s *storeStub) ListByStatus(_ context.Context, _ enums.ImageStatus) ([]model.Image, error) {
	return nil, nil
}

func (s *storeStub) CountByUploader(_ context.Context, _ int64) (int, error) { return 0, nil }

func (s *storeStub) CountByUploaderAndStatus(_ context.Context, _ int64, _ enums.ImageStatus) (int, error) {
	return 0, nil
}

func (s *storeStub) Stats(_ context.Context) (pgrepo.ImageStats, error) {
	return pgrepo.ImageStats{}, nil
}

type storageStub struct {
	puts    map[string][]byte
	deleted []string
}

func newStorageStub() *storageStub {
	return &storageStub{puts: map[string][]byte{}}
}

func (s *storageStub) EnsureBucket(_ context.Context) error { return nil }

func (s *storageStub) PutImage(_ context.Context, key string, data []byte, _ string) error {
	s.puts[key] = data
	return nil
}

func (s *storageStub) GetImage(_ context.Context, key string) ([]byte, error) {
	data, ok := s.puts[key]
	if !ok {
		return nil, errors.New("object missing")
	}
	return data, nil
}

func (s *storageStub) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func TestSaveStoresPendingImage(t *testing.T) {
	store := &storeStub{}
	storage := newStorageStub()
	svc := NewService(store, storage, zap.NewNop(), 10<<20)

	img, err := svc.Save(context.Background(), 42, "wolf.png", pngPayload)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if img.Status != enums.ImageStatusPending {
		t.Fatalf("expected pending status, got %s", img.Status)
	}
	if img.MimeType != "image/png" {
		t.Fatalf("expected sniffed image/png, got %s", img.MimeType)
	}
	if img.ObjectKey == "" {
		t.Fatalf("expected object key on saved image")
	}
	if _, ok := storage.puts[img.ObjectKey]; !ok {
		t.Fatalf("payload was not stored under %q", img.ObjectKey)
	}
}

func TestSaveRejectsOversizedPayload(t *testing.T) {
	svc := NewService(&storeStub{}, newStorageStub(), zap.NewNop(), 4)

	_, err := svc.Save(context.Background(), 42, "wolf.png", pngPayload)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestSaveRejectsNonImagePayload(t *testing.T) {
	svc := NewService(&storeStub{}, newStorageStub(), zap.NewNop(), 10<<20)

	_, err := svc.Save(context.Background(), 42, "notes.txt", []byte("just some text, not an image"))
	if !errors.Is(err, ErrUnsupportedMime) {
		t.Fatalf("expected ErrUnsupportedMime, got %v", err)
	}
}

func TestSaveRejectsGifPayload(t *testing.T) {
	svc := NewService(&storeStub{}, newStorageStub(), zap.NewNop(), 10<<20)

	gifPayload := append([]byte("GIF89a"), 0, 0, 0, 0, 0, 0)
	_, err := svc.Save(context.Background(), 42, "wolf.gif", gifPayload)
	if !errors.Is(err, ErrUnsupportedMime) {
		t.Fatalf("expected ErrUnsupportedMime for gif, got %v", err)
	}
}

func TestSaveRollsBackObjectOnRecordFailure(t *testing.T) {
	store := &storeStub{createErr: errors.New("insert failed")}
	storage := newStorageStub()
	svc := NewService(store, storage, zap.NewNop(), 10<<20)

	_, err := svc.Save(context.Background(), 42, "wolf.png", pngPayload)
	if err == nil {
		t.Fatalf("expected error from failing store")
	}
	if len(storage.deleted) != 1 {
		t.Fatalf("expected stored object to be rolled back, deletes: %v", storage.deleted)
	}
}

func TestSelectNextImageMapsEmptyPool(t *testing.T) {
	store := &storeStub{acquireErr: pgrepo.ErrImageNotFound}
	svc := NewService(store, newStorageStub(), zap.NewNop(), 10<<20)

	_, err := svc.SelectNextImage(context.Background())
	if !errors.Is(err, ErrNoApprovedImages) {
		t.Fatalf("expected ErrNoApprovedImages, got %v", err)
	}
}

func TestNextForSendingPrefersNeverSent(t *testing.T) {
	sent := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	candidates := []model.Image{
		{ID: 1, Status: enums.ImageStatusApproved, LastSent: &sent},
		{ID: 2, Status: enums.ImageStatusApproved},
		{ID: 3, Status: enums.ImageStatusApproved, LastSent: &sent},
	}

	got := NextForSending(candidates)
	if got == nil || got.ID != 2 {
		t.Fatalf("expected never-sent image 2, got %+v", got)
	}
}

func TestNextForSendingPicksOldestLastSent(t *testing.T) {
	older := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	candidates := []model.Image{
		{ID: 1, Status: enums.ImageStatusApproved, LastSent: &newer},
		{ID: 2, Status: enums.ImageStatusApproved, LastSent: &older},
	}

	got := NextForSending(candidates)
	if got == nil || got.ID != 2 {
		t.Fatalf("expected image with oldest last_sent, got %+v", got)
	}
}

func TestNextForSendingSkipsUnapproved(t *testing.T) {
	candidates := []model.Image{
		{ID: 1, Status: enums.ImageStatusPending},
		{ID: 2, Status: enums.ImageStatusRejected},
		{ID: 3, Status: enums.ImageStatusBlocked},
	}

	if got := NextForSending(candidates); got != nil {
		t.Fatalf("expected nil with no approved candidates, got %+v", got)
	}
}

func TestNextForSendingRotatesThroughPool(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	pool := []model.Image{
		{ID: 1, Status: enums.ImageStatusApproved, UploadedAt: base},
		{ID: 2, Status: enums.ImageStatusApproved, UploadedAt: base.Add(time.Minute)},
		{ID: 3, Status: enums.ImageStatusApproved, UploadedAt: base.Add(2 * time.Minute)},
	}

	seen := map[int64]int{}
	clock := base.Add(time.Hour)
	for i := 0; i < 6; i++ {
		got := NextForSending(pool)
		if got == nil {
			t.Fatalf("round %d: expected a candidate", i)
		}
		seen[got.ID]++
		sentAt := clock.Add(time.Duration(i) * time.Minute)
		got.LastSent = &sentAt
	}

	for id, n := range seen {
		if n != 2 {
			t.Fatalf("expected even rotation, image %d sent %d times: %v", id, n, seen)
		}
	}
}
