package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/enums"
	"github.com/ivankudzin/wolfpost/internal/domain/model"
	pgrepo "github.com/ivankudzin/wolfpost/internal/repo/postgres"
)

type memImageStore struct {
	mu     sync.Mutex
	images map[int64]*model.Image
	counts map[int64]int
}

func newMemImageStore(images ...model.Image) *memImageStore {
	s := &memImageStore{
		images: map[int64]*model.Image{},
		counts: map[int64]int{},
	}
	for i := range images {
		img := images[i]
		s.images[img.ID] = &img
	}
	return s
}

func (s *memImageStore) GetByID(_ context.Context, imageID int64) (model.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[imageID]
	if !ok {
		return model.Image{}, pgrepo.ErrImageNotFound
	}
	return *img, nil
}

func (s *memImageStore) Moderate(_ context.Context, imageID, moderatorTGID int64, status enums.ImageStatus, reason *string) (model.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[imageID]
	if !ok {
		return model.Image{}, pgrepo.ErrImageNotFound
	}
	if img.Status != enums.ImageStatusPending {
		return model.Image{}, pgrepo.ErrAlreadyDecided
	}

	now := time.Now()
	img.Status = status
	img.ModeratedAt = &now
	img.ModeratedBy = &moderatorTGID
	img.ModerationReason = reason
	s.counts[moderatorTGID]++

	return *img, nil
}

func (s *memImageStore) CountByUploader(_ context.Context, _ int64) (int, error) { return 0, nil }

func (s *memImageStore) CountByUploaderAndStatus(_ context.Context, _ int64, _ enums.ImageStatus) (int, error) {
	return 0, nil
}

func (s *memImageStore) Stats(_ context.Context) (pgrepo.ImageStats, error) {
	return pgrepo.ImageStats{}, nil
}

type moderatorStoreStub struct {
	active []model.Moderator
}

func (s *moderatorStoreStub) ListActive(_ context.Context) ([]model.Moderator, error) {
	return s.active, nil
}

func (s *moderatorStoreStub) GetByTelegramID(_ context.Context, telegramID int64) (model.Moderator, error) {
	for _, mod := range s.active {
		if mod.TelegramID == telegramID {
			return mod, nil
		}
	}
	return model.Moderator{}, pgrepo.ErrModeratorNotFound
}

func (s *moderatorStoreStub) CountActive(_ context.Context) (int, error) {
	return len(s.active), nil
}

type userStoreStub struct{}

func (userStoreStub) GetByTelegramID(_ context.Context, telegramID int64) (model.User, error) {
	return model.User{TelegramID: telegramID, FirstName: "Тест", RegisteredAt: time.Now()}, nil
}

type payloadsStub struct {
	err error
}

func (s *payloadsStub) Payload(_ context.Context, _ model.Image) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte{0xFF, 0xD8, 0xFF}, nil
}

type senderStub struct {
	mu         sync.Mutex
	texts      map[int64][]string
	photos     map[int64]int
	failPhotos map[int64]bool
}

func newSenderStub() *senderStub {
	return &senderStub{
		texts:      map[int64][]string{},
		photos:     map[int64]int{},
		failPhotos: map[int64]bool{},
	}
}

func (s *senderStub) SendText(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[chatID] = append(s.texts[chatID], text)
	return nil
}

func (s *senderStub) SendModerationPhoto(_ context.Context, chatID int64, _ []byte, _, _ string, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPhotos[chatID] {
		return fmt.Errorf("telegram unavailable for %d", chatID)
	}
	s.photos[chatID]++
	return nil
}

func newTestService(store *memImageStore, mods *moderatorStoreStub, sender *senderStub) *Service {
	return NewService(store, mods, userStoreStub{}, &payloadsStub{}, sender, zap.NewNop())
}

func TestFirstDecisionWins(t *testing.T) {
	store := newMemImageStore(model.Image{ID: 10, UploadedBy: 500, Status: enums.ImageStatusPending})
	mods := &moderatorStoreStub{active: []model.Moderator{
		{ID: 1, TelegramID: 101, Active: true},
		{ID: 2, TelegramID: 102, Active: true},
		{ID: 3, TelegramID: 103, Active: true},
	}}
	sender := newSenderStub()
	svc := newTestService(store, mods, sender)

	ctx := context.Background()

	if _, err := svc.Decide(ctx, 10, 101, enums.ImageStatusApproved, nil); err != nil {
		t.Fatalf("first decision: %v", err)
	}

	if _, err := svc.Decide(ctx, 10, 102, enums.ImageStatusRejected, nil); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("second decision: expected ErrAlreadyDecided, got %v", err)
	}
	if _, err := svc.Decide(ctx, 10, 103, enums.ImageStatusBlocked, nil); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("third decision: expected ErrAlreadyDecided, got %v", err)
	}

	img, err := store.GetByID(ctx, 10)
	if err != nil {
		t.Fatalf("get image: %v", err)
	}
	if img.Status != enums.ImageStatusApproved {
		t.Fatalf("expected approved status to stick, got %s", img.Status)
	}
	if img.ModeratedBy == nil || *img.ModeratedBy != 101 {
		t.Fatalf("expected first moderator recorded, got %v", img.ModeratedBy)
	}

	total := 0
	for _, n := range store.counts {
		total += n
	}
	if total != 1 {
		t.Fatalf("expected exactly one counted decision, got %d", total)
	}

	if got := len(sender.texts[500]); got != 1 {
		t.Fatalf("expected one uploader notification, got %d", got)
	}
}

func TestDecideMissingImageIsNoOp(t *testing.T) {
	store := newMemImageStore()
	sender := newSenderStub()
	svc := newTestService(store, &moderatorStoreStub{}, sender)

	_, err := svc.Decide(context.Background(), 999, 101, enums.ImageStatusApproved, nil)
	if !errors.Is(err, ErrImageNotFound) {
		t.Fatalf("expected ErrImageNotFound, got %v", err)
	}
	if len(sender.texts) != 0 {
		t.Fatalf("expected no notifications for missing image, got %v", sender.texts)
	}
}

func TestSubmitForModerationIsolatesFailures(t *testing.T) {
	store := newMemImageStore(model.Image{ID: 10, UploadedBy: 500, Status: enums.ImageStatusPending})
	mods := &moderatorStoreStub{active: []model.Moderator{
		{ID: 1, TelegramID: 101, Active: true},
		{ID: 2, TelegramID: 102, Active: true},
		{ID: 3, TelegramID: 103, Active: true},
	}}
	sender := newSenderStub()
	sender.failPhotos[102] = true
	svc := newTestService(store, mods, sender)

	img, _ := store.GetByID(context.Background(), 10)
	if err := svc.SubmitForModeration(context.Background(), img); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if sender.photos[101] != 1 || sender.photos[103] != 1 {
		t.Fatalf("expected delivery to healthy moderators, got %v", sender.photos)
	}
	if sender.photos[102] != 0 {
		t.Fatalf("expected no delivery to failing moderator, got %v", sender.photos)
	}
}

func TestSubmitForModerationEmptyRoster(t *testing.T) {
	store := newMemImageStore(model.Image{ID: 10, UploadedBy: 500, Status: enums.ImageStatusPending})
	sender := newSenderStub()
	svc := newTestService(store, &moderatorStoreStub{}, sender)

	img, _ := store.GetByID(context.Background(), 10)
	if err := svc.SubmitForModeration(context.Background(), img); err != nil {
		t.Fatalf("submit with empty roster: %v", err)
	}
	if len(sender.photos) != 0 {
		t.Fatalf("expected no deliveries with empty roster, got %v", sender.photos)
	}
}

func TestAutoApproveUsesNewestActiveModerator(t *testing.T) {
	store := newMemImageStore(model.Image{ID: 10, UploadedBy: 500, Status: enums.ImageStatusPending})
	mods := &moderatorStoreStub{active: []model.Moderator{
		{ID: 3, TelegramID: 103, Active: true},
		{ID: 1, TelegramID: 101, Active: true},
	}}
	svc := newTestService(store, mods, newSenderStub())

	img, err := svc.AutoApprove(context.Background(), 10)
	if err != nil {
		t.Fatalf("auto approve: %v", err)
	}
	if img.Status != enums.ImageStatusApproved {
		t.Fatalf("expected approved, got %s", img.Status)
	}
	if img.ModeratedBy == nil || *img.ModeratedBy != 103 {
		t.Fatalf("expected first roster entry as decider, got %v", img.ModeratedBy)
	}
}

func TestDetailsForMissingImageTellsModerator(t *testing.T) {
	sender := newSenderStub()
	svc := newTestService(newMemImageStore(), &moderatorStoreStub{}, sender)

	if err := svc.Details(context.Background(), 404, 101); err != nil {
		t.Fatalf("details: %v", err)
	}

	texts := sender.texts[101]
	if len(texts) != 1 || !strings.Contains(texts[0], "не найдено") {
		t.Fatalf("expected missing-image reply, got %v", texts)
	}
}
