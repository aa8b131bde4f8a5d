package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rentalhub/internal/config"
	"rentalhub/internal/database"
	"rentalhub/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore fails the first `failures` writes and records the rest.
type fakeStore struct {
	mu       sync.Mutex
	failures int
	calls    int
	entries  []models.ActivityLog
}

func (f *fakeStore) CreateActivityLog(_ context.Context, entry *models.ActivityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures < 0 || f.calls <= f.failures {
		return errors.New("database is locked")
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeStore) ListActivityLogs(context.Context, int64, int) ([]*models.ActivityLog, error) {
	return nil, nil
}

func (f *fakeStore) saved() []models.ActivityLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ActivityLog(nil), f.entries...)
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() config.AuditConfig {
	return config.AuditConfig{Enabled: true, QueueSize: 8, MaxRetries: 3, RetryDelay: time.Millisecond}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func runWorker(t *testing.T, w *AuditWorker) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}

	assert.Equal(t, time.Second, RetryPolicy{}.NextDelay(1))
}

func TestRetryPolicyFromConfig(t *testing.T) {
	p := RetryPolicyFromConfig(config.AuditConfig{MaxRetries: 4, RetryDelay: 250 * time.Millisecond})
	assert.Equal(t, 4, p.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, p.NextDelay(1))
	assert.Equal(t, 500*time.Millisecond, p.NextDelay(2))
	assert.Equal(t, time.Minute, p.NextDelay(20))
}

func TestAuditWorker_Enqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("Validation", func(t *testing.T) {
		w := NewAuditWorker(&fakeStore{}, nil, testConfig(), nil)
		assert.Error(t, w.Enqueue(ctx, nil))
		assert.Error(t, w.Enqueue(ctx, &models.ActivityLog{UserID: 1}))
	})

	t.Run("StampsCreatedAt", func(t *testing.T) {
		w := NewAuditWorker(&fakeStore{}, nil, testConfig(), nil)
		entry := &models.ActivityLog{UserID: 1, Action: "rental.checkout"}
		require.NoError(t, w.Enqueue(ctx, entry))
		assert.False(t, entry.CreatedAt.IsZero())

		task, ok := w.tryLocalQueue()
		require.True(t, ok)
		assert.Equal(t, "rental.checkout", task.Entry.Action)
		assert.Zero(t, task.Attempt)
	})

	t.Run("QueueFull", func(t *testing.T) {
		cfg := testConfig()
		cfg.QueueSize = 1
		w := NewAuditWorker(&fakeStore{}, nil, cfg, nil)

		require.NoError(t, w.Enqueue(ctx, &models.ActivityLog{Action: "first"}))
		err := w.Enqueue(ctx, &models.ActivityLog{Action: "second"})
		assert.ErrorIs(t, err, ErrQueueFull)
	})

	t.Run("Redis", func(t *testing.T) {
		s, client := newRedis(t)
		w := NewAuditWorker(&fakeStore{}, client, testConfig(), nil)

		require.NoError(t, w.Enqueue(ctx, &models.ActivityLog{UserID: 7, Action: "payment.create"}))

		items, err := s.List("audit:queue")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Contains(t, items[0], "payment.create")

		_, ok := w.tryLocalQueue()
		assert.False(t, ok)
	})

	t.Run("RedisDownFallsBackToMemory", func(t *testing.T) {
		s, client := newRedis(t)
		s.Close()
		w := NewAuditWorker(&fakeStore{}, client, testConfig(), nil)

		require.NoError(t, w.Enqueue(ctx, &models.ActivityLog{Action: "equipment.create"}))
		_, ok := w.tryLocalQueue()
		assert.True(t, ok)
	})
}

func TestAuditWorker_PersistsFromMemoryQueue(t *testing.T) {
	db, err := database.NewDB(":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	w := NewAuditWorker(db, nil, testConfig(), nil)
	runWorker(t, w)

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, &models.ActivityLog{UserID: 3, Action: "rental.return", Details: "rental #1", IPAddress: "10.0.0.1"}))

	require.Eventually(t, func() bool {
		logs, err := db.ListActivityLogs(ctx, 3, 10)
		return err == nil && len(logs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	logs, err := db.ListActivityLogs(ctx, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, "rental.return", logs[0].Action)
	assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
}

func TestAuditWorker_PersistsFromRedis(t *testing.T) {
	s, client := newRedis(t)
	store := &fakeStore{}
	w := NewAuditWorker(store, client, testConfig(), nil)
	runWorker(t, w)

	require.NoError(t, w.Enqueue(context.Background(), &models.ActivityLog{UserID: 2, Action: "delivery.delivered"}))

	require.Eventually(t, func() bool { return len(store.saved()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "delivery.delivered", store.saved()[0].Action)
	assert.False(t, s.Exists("audit:queue"))
}

func TestAuditWorker_RetriesThenSucceeds(t *testing.T) {
	store := &fakeStore{failures: 2}
	w := NewAuditWorker(store, nil, testConfig(), nil)
	runWorker(t, w)

	require.NoError(t, w.Enqueue(context.Background(), &models.ActivityLog{Action: "auth.login"}))

	require.Eventually(t, func() bool { return len(store.saved()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, store.callCount())
}

func TestAuditWorker_DeadLetter(t *testing.T) {
	s, client := newRedis(t)
	store := &fakeStore{failures: -1}
	logger := zerolog.Nop()
	w := NewAuditWorker(store, client, testConfig(), &logger)

	task := auditTask{Entry: &models.ActivityLog{Action: "equipment.delete"}, Attempt: 2}
	w.processTask(context.Background(), task)

	items, err := s.List("audit:deadletter")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0], "equipment.delete")
	assert.Contains(t, items[0], `"attempt":3`)
	assert.Empty(t, store.saved())
}

func TestAuditWorker_DrainsOnShutdown(t *testing.T) {
	store := &fakeStore{}
	w := NewAuditWorker(store, nil, testConfig(), nil)

	ctx := context.Background()
	for _, action := range []string{"a", "b", "c"} {
		require.NoError(t, w.Enqueue(ctx, &models.ActivityLog{Action: action}))
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	w.Start(cancelled)

	assert.Len(t, store.saved(), 3)
}
