package notify

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/model"
)

type subscribersStub struct {
	users []model.User
}

func (s *subscribersStub) ListSubscribed(_ context.Context) ([]model.User, error) {
	return s.users, nil
}

type senderStub struct {
	texts    map[int64]int
	sentAt   []time.Time
	failFor  map[int64]bool
	captions []string
}

func newSenderStub() *senderStub {
	return &senderStub{texts: map[int64]int{}, failFor: map[int64]bool{}}
}

func (s *senderStub) SendText(_ context.Context, chatID int64, _ string) error {
	if s.failFor[chatID] {
		return fmt.Errorf("unreachable chat %d", chatID)
	}
	s.texts[chatID]++
	s.sentAt = append(s.sentAt, time.Now())
	return nil
}

func (s *senderStub) SendPhoto(_ context.Context, chatID int64, _ []byte, _, caption string) error {
	if s.failFor[chatID] {
		return fmt.Errorf("unreachable chat %d", chatID)
	}
	s.captions = append(s.captions, caption)
	return nil
}

func TestBroadcastIsolatesFailedRecipients(t *testing.T) {
	subs := &subscribersStub{users: []model.User{
		{TelegramID: 1, Subscribed: true},
		{TelegramID: 2, Subscribed: true},
		{TelegramID: 3, Subscribed: true},
	}}
	sender := newSenderStub()
	sender.failFor[2] = true

	svc := NewService(subs, sender, zap.NewNop(), 0)

	sent, failed, err := svc.BroadcastToSubscribers(context.Background(), "привет")
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if sent != 2 || failed != 1 {
		t.Fatalf("expected sent=2 failed=1, got sent=%d failed=%d", sent, failed)
	}
	if sender.texts[1] != 1 || sender.texts[3] != 1 {
		t.Fatalf("expected delivery to healthy recipients, got %v", sender.texts)
	}
}

func TestBroadcastRespectsDelay(t *testing.T) {
	subs := &subscribersStub{users: []model.User{
		{TelegramID: 1}, {TelegramID: 2}, {TelegramID: 3},
	}}
	sender := newSenderStub()
	svc := NewService(subs, sender, zap.NewNop(), 30*time.Millisecond)

	start := time.Now()
	sent, _, err := svc.BroadcastToSubscribers(context.Background(), "привет")
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if sent != 3 {
		t.Fatalf("expected 3 sends, got %d", sent)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("expected at least two inter-send pauses, elapsed %s", elapsed)
	}
}

func TestBroadcastStopsOnCancelledContext(t *testing.T) {
	subs := &subscribersStub{users: []model.User{{TelegramID: 1}, {TelegramID: 2}}}
	sender := newSenderStub()
	svc := NewService(subs, sender, zap.NewNop(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := svc.BroadcastToSubscribers(ctx, "привет")
	if err == nil {
		t.Fatalf("expected context error from cancelled broadcast")
	}
}

func TestSendImageCaptionCarriesDate(t *testing.T) {
	sender := newSenderStub()
	svc := NewService(&subscribersStub{}, sender, zap.NewNop(), 0)
	svc.now = func() time.Time { return time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC) }

	err := svc.SendImageToUser(context.Background(), 1, model.Image{ID: 9, FileName: "wolf.jpg"}, []byte{0xFF})
	if err != nil {
		t.Fatalf("send image: %v", err)
	}
	if len(sender.captions) != 1 {
		t.Fatalf("expected one delivery, got %d", len(sender.captions))
	}
	if want := "02.05.2024"; !strings.Contains(sender.captions[0], want) {
		t.Fatalf("expected caption to carry %q, got %q", want, sender.captions[0])
	}
}
