package push

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aroosi/aroosi-api/internal/metrics"
	"github.com/aroosi/aroosi-api/internal/model"
)

var workerNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type failure struct {
	attempt   int
	errMsg    string
	next      time.Time
	exhausted bool
}

type fakeStore struct {
	mu        sync.Mutex
	due       []*model.Notification
	devices   map[string][]*model.DeviceToken
	delivered map[string]int
	failed    map[string]failure
	disabled  []string
	depth     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		devices:   make(map[string][]*model.DeviceToken),
		delivered: make(map[string]int),
		failed:    make(map[string]failure),
	}
}

func (s *fakeStore) ClaimDue(_ context.Context, _ time.Time, limit int) ([]*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(limit, len(s.due))
	out := s.due[:n]
	s.due = s.due[n:]
	return out, nil
}

func (s *fakeStore) ListActiveDevices(_ context.Context, userID string) ([]*model.DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices[userID], nil
}

func (s *fakeStore) MarkDelivered(_ context.Context, id string, attempt int, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered[id] = attempt
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id string, attempt int, errMsg string, next time.Time, exhausted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = failure{attempt: attempt, errMsg: errMsg, next: next, exhausted: exhausted}
	return nil
}

func (s *fakeStore) DisableDevice(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = append(s.disabled, token)
	return nil
}

func (s *fakeStore) QueueDepth(context.Context) (int64, error) {
	return s.depth, nil
}

// fakeSender returns a per-token error and records what it sent.
type fakeSender struct {
	mu   sync.Mutex
	errs map[string]error
	sent []Message
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.errs[msg.To]
}

func newTestWorker(store Store, sender Sender) (*Worker, *metrics.InMemoryRecorder) {
	rec := metrics.NewInMemory()
	w := NewWorker(store, sender, slog.New(slog.NewTextHandler(io.Discard, nil)), rec)
	w.now = func() time.Time { return workerNow }
	return w, rec
}

func pending(id, userID string, attempts int) *model.Notification {
	return &model.Notification{
		ID:           id,
		UserID:       userID,
		Type:         model.NotifyNewMessage,
		Title:        "New message",
		Body:         "hello",
		Data:         map[string]string{"conversationId": "c1"},
		Status:       model.NotificationPending,
		AttemptCount: attempts,
	}
}

func device(userID, token string) *model.DeviceToken {
	return &model.DeviceToken{Token: token, UserID: userID, Platform: model.PlatformAndroid}
}

func TestWorker_DeliversToEveryDevice(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.due = []*model.Notification{pending("n1", "u1", 0)}
	store.devices["u1"] = []*model.DeviceToken{device("u1", "t1"), device("u1", "t2")}
	sender := &fakeSender{}

	w, rec := newTestWorker(store, sender)
	require.NoError(t, w.processOnce(context.Background()))

	assert.Len(t, sender.sent, 2)
	assert.Equal(t, "New message", sender.sent[0].Title)
	assert.Equal(t, "c1", sender.sent[0].Data["conversationId"])
	assert.Equal(t, "android", sender.sent[0].Platform)
	assert.Equal(t, 1, store.delivered["n1"])
	assert.Equal(t, uint64(1), rec.Snapshot().PushDeliveries["delivered"])
}

func TestWorker_NoDevicesIsInAppOnly(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.due = []*model.Notification{pending("n1", "u1", 0)}
	sender := &fakeSender{}

	w, rec := newTestWorker(store, sender)
	require.NoError(t, w.processOnce(context.Background()))

	assert.Empty(t, sender.sent)
	assert.Contains(t, store.delivered, "n1")
	assert.Equal(t, uint64(1), rec.Snapshot().PushDeliveries["in_app"])
}

func TestWorker_NilSenderIsInAppOnly(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.due = []*model.Notification{pending("n1", "u1", 0)}
	store.devices["u1"] = []*model.DeviceToken{device("u1", "t1")}

	w, rec := newTestWorker(store, nil)
	require.NoError(t, w.processOnce(context.Background()))

	assert.Contains(t, store.delivered, "n1")
	assert.Equal(t, uint64(1), rec.Snapshot().PushDeliveries["in_app"])
}

func TestWorker_GoneDeviceIsDisabled(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.due = []*model.Notification{pending("n1", "u1", 0)}
	store.devices["u1"] = []*model.DeviceToken{device("u1", "stale"), device("u1", "fresh")}
	sender := &fakeSender{errs: map[string]error{"stale": ErrDeviceGone}}

	w, _ := newTestWorker(store, sender)
	require.NoError(t, w.processOnce(context.Background()))

	assert.Equal(t, []string{"stale"}, store.disabled)
	assert.Contains(t, store.delivered, "n1")
	assert.Empty(t, store.failed)
}

func TestWorker_AllDevicesGoneStillCompletes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.due = []*model.Notification{pending("n1", "u1", 0)}
	store.devices["u1"] = []*model.DeviceToken{device("u1", "stale")}
	sender := &fakeSender{errs: map[string]error{"stale": ErrDeviceGone}}

	w, _ := newTestWorker(store, sender)
	require.NoError(t, w.processOnce(context.Background()))

	assert.Contains(t, store.delivered, "n1")
	assert.Empty(t, store.failed)
}

func TestWorker_TransientFailureSchedulesRetry(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.due = []*model.Notification{pending("n1", "u1", 1)}
	store.devices["u1"] = []*model.DeviceToken{device("u1", "t1")}
	sender := &fakeSender{errs: map[string]error{"t1": &DeliveryError{StatusCode: 503}}}

	w, rec := newTestWorker(store, sender)
	require.NoError(t, w.processOnce(context.Background()))

	f, ok := store.failed["n1"]
	require.True(t, ok)
	assert.Equal(t, 2, f.attempt)
	assert.False(t, f.exhausted)
	assert.Contains(t, f.errMsg, "503")
	// second attempt backs off 5m ± 20%
	assert.True(t, f.next.After(workerNow.Add(4*time.Minute)))
	assert.True(t, f.next.Before(workerNow.Add(6*time.Minute+time.Second)))
	assert.Equal(t, uint64(1), rec.Snapshot().PushDeliveries["retry"])
}

func TestWorker_PartialSuccessCountsAsDelivered(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.due = []*model.Notification{pending("n1", "u1", 0)}
	store.devices["u1"] = []*model.DeviceToken{device("u1", "bad"), device("u1", "good")}
	sender := &fakeSender{errs: map[string]error{"bad": errors.New("connection reset")}}

	w, _ := newTestWorker(store, sender)
	require.NoError(t, w.processOnce(context.Background()))

	assert.Contains(t, store.delivered, "n1")
	assert.Empty(t, store.failed)
}

func TestWorker_ExhaustsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.due = []*model.Notification{pending("n1", "u1", model.MaxNotificationAttempts-1)}
	store.devices["u1"] = []*model.DeviceToken{device("u1", "t1")}
	sender := &fakeSender{errs: map[string]error{"t1": errors.New("timeout")}}

	w, rec := newTestWorker(store, sender)
	require.NoError(t, w.processOnce(context.Background()))

	f := store.failed["n1"]
	assert.True(t, f.exhausted)
	assert.Equal(t, model.MaxNotificationAttempts, f.attempt)
	assert.Equal(t, uint64(1), rec.Snapshot().PushDeliveries["exhausted"])
}

func TestWorker_BatchSizeAndQueueDepth(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.depth = 7
	for _, id := range []string{"n1", "n2", "n3"} {
		store.due = append(store.due, pending(id, "u1", 0))
	}

	w, rec := newTestWorker(store, &fakeSender{})
	w.SetBatchSize(2)
	w.SetBatchSize(0)
	require.NoError(t, w.processOnce(context.Background()))

	assert.Len(t, store.delivered, 2)
	assert.Len(t, store.due, 1)
	assert.Equal(t, int64(7), rec.Snapshot().PushQueueDepth)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.due = []*model.Notification{pending("n1", "u1", 0)}

	w, _ := newTestWorker(store, &fakeSender{})
	w.SetPollInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.delivered) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	assert.Error(t, w.Run(context.Background()), "second Run must fail")
}
