package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"rentalhub/internal/config"
	"rentalhub/internal/domain"
	"rentalhub/internal/metrics"
	"rentalhub/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var ErrQueueFull = errors.New("audit queue is full")

// auditTask is the queued form of an activity entry.
type auditTask struct {
	Entry   *models.ActivityLog `json:"entry"`
	Attempt int                 `json:"attempt"`
}

// AuditWorker persists activity log entries off the request path.
// Entries go to a redis list when a client is configured and to an in-memory channel otherwise.
type AuditWorker struct {
	store         domain.ActivityLogRepository
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan auditTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	logger        *zerolog.Logger

	wg sync.WaitGroup
}

// NewAuditWorker builds a worker with sane defaults.
func NewAuditWorker(store domain.ActivityLogRepository, redisClient *redis.Client, cfg config.AuditConfig, logger *zerolog.Logger) *AuditWorker {
	retry := RetryPolicyFromConfig(cfg)
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 128
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &AuditWorker{
		store:         store,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan auditTask, size),
		redisQueueKey: "audit:queue",
		deadLetterKey: "audit:deadletter",
		pollInterval:  time.Second,
		logger:        logger,
	}
}

// Enqueue schedules entry for persistence. The timestamp is fixed here, not at write time.
func (w *AuditWorker) Enqueue(ctx context.Context, entry *models.ActivityLog) error {
	if entry == nil {
		return errors.New("audit entry is nil")
	}
	if entry.Action == "" {
		return errors.New("audit action is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	task := auditTask{Entry: entry}

	// Try redis first for durability.
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Msg("audit_worker: redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	return w.pushLocal(task)
}

// Start launches main loop; stops when ctx is done and the local queue is drained.
func (w *AuditWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("audit_worker: started")
	defer w.logger.Info().Msg("audit_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, t)
			continue
		}

		if w.redis == nil {
			// без redis ждем только локальную очередь
			select {
			case <-ctx.Done():
			case t := <-w.queue:
				w.processTask(ctx, t)
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// drain writes what is left in the local channel once, without retries.
func (w *AuditWorker) drain() {
	w.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		t, ok := w.tryLocalQueue()
		if !ok {
			return
		}
		if err := w.store.CreateActivityLog(ctx, t.Entry); err != nil {
			metrics.IncAuditDropped()
			w.logger.Error().Err(err).Str("action", t.Entry.Action).Msg("audit_worker: drop entry on shutdown")
		}
	}
}

func (w *AuditWorker) tryLocalQueue() (auditTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return auditTask{}, false
	}
}

func (w *AuditWorker) tryRedis(ctx context.Context) (auditTask, bool) {
	if w.redis == nil {
		return auditTask{}, false
	}
	res, err := w.redis.BRPop(ctx, w.pollInterval, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return auditTask{}, false
		}
		w.logger.Error().Err(err).Msg("audit_worker: redis BRPOP error")
		// redis лежит: не крутим цикл вхолостую
		select {
		case <-ctx.Done():
		case <-time.After(w.pollInterval):
		}
		return auditTask{}, false
	}
	if len(res) != 2 {
		return auditTask{}, false
	}
	var task auditTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("audit_worker: decode redis task")
		return auditTask{}, false
	}
	if task.Entry == nil {
		return auditTask{}, false
	}
	return task, true
}

func (w *AuditWorker) processTask(ctx context.Context, task auditTask) {
	entry := *task.Entry
	if err := w.store.CreateActivityLog(ctx, &entry); err != nil {
		w.retryOrFail(ctx, task, err)
	}
}

func (w *AuditWorker) retryOrFail(ctx context.Context, task auditTask, cause error) {
	task.Attempt++
	if task.Attempt >= w.retryPolicy.MaxRetries {
		metrics.IncAuditDropped()
		w.logger.Error().Err(cause).
			Str("action", task.Entry.Action).
			Int("attempts", task.Attempt).
			Msg("audit_worker: entry moved to dead letter")
		w.pushDeadLetter(ctx, task)
		return
	}

	delay := w.retryPolicy.NextDelay(task.Attempt)
	w.logger.Warn().Err(cause).
		Str("action", task.Entry.Action).
		Int("attempt", task.Attempt).
		Dur("delay", delay).
		Msg("audit_worker: retry scheduled")

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		w.requeue(task)
	}()
}

// requeue puts a retried task back; on shutdown it lands in the local queue for drain.
func (w *AuditWorker) requeue(task auditTask) {
	if w.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err == nil {
			return
		}
	}
	if err := w.pushLocal(task); err != nil {
		w.logger.Error().Err(err).Str("action", task.Entry.Action).Msg("audit_worker: requeue failed")
	}
}

func (w *AuditWorker) pushLocal(task auditTask) error {
	select {
	case w.queue <- task:
		return nil
	default:
		metrics.IncAuditDropped()
		w.logger.Error().Str("action", task.Entry.Action).Msg("audit_worker: in-memory queue full, entry dropped")
		return ErrQueueFull
	}
}

func (w *AuditWorker) pushRedis(ctx context.Context, key string, task auditTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode audit task: %w", err)
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func (w *AuditWorker) pushDeadLetter(ctx context.Context, task auditTask) {
	if w.redis == nil {
		return
	}
	if err := w.pushRedis(context.WithoutCancel(ctx), w.deadLetterKey, task); err != nil {
		w.logger.Error().Err(err).Str("action", task.Entry.Action).Msg("audit_worker: deadletter push")
	}
}
