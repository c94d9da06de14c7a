package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"villa/internal/domain"
	"villa/internal/metrics"
	"villa/internal/models"
	"villa/internal/pms"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const TaskCreateReservation = "create_reservation"

// TaskStore is the persistence the worker needs. *database.DB satisfies it.
type TaskStore interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	GetSyncTask(ctx context.Context, id int64) (*models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	MarkSynced(ctx context.Context, id int64, at time.Time) error
}

// PMSSyncWorker consumes sync_queue tasks and delivers them to the PMS.
// A task that exhausts its retries is dead-lettered; the reservation keeps
// sync_status=pending so the pending-sync job raises an alert.
type PMSSyncWorker struct {
	store         TaskStore
	client        domain.PMSClient
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	now           func() time.Time
	logger        zerolog.Logger
}

func NewPMSSyncWorker(store TaskStore, client domain.PMSClient, redisClient *redis.Client, retry RetryPolicy, pollInterval time.Duration, logger *zerolog.Logger) *PMSSyncWorker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	return &PMSSyncWorker{
		store:         store,
		client:        client,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan models.SyncTask, 128),
		redisQueueKey: "pms:queue",
		deadLetterKey: "pms:deadletter",
		pollInterval:  pollInterval,
		batchSize:     20,
		now:           time.Now,
		logger:        logger.With().Str("component", "pms_worker").Logger(),
	}
}

// EnqueueReservation persists a delivery task and schedules it via redis or
// the in-memory queue. The DB row is the source of truth; both fast paths
// may drop it and polling still finds it.
func (w *PMSSyncWorker) EnqueueReservation(ctx context.Context, r *models.Reservation) error {
	if r == nil || r.ID == 0 {
		return errors.New("reservation id is required")
	}

	payload, err := json.Marshal(pms.NewPayload(r))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:      TaskCreateReservation,
		ReservationID: r.ID,
		Payload:       string(payload),
		Status:        models.SyncTaskPending,
	}
	if err := w.store.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("Redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("Memory queue full, task left to polling")
	}
	return nil
}

// Start runs the delivery loop until ctx is done.
func (w *PMSSyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("PMS sync worker started")
	defer w.logger.Info().Msg("PMS sync worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		if n := w.pollOnce(ctx); n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.processTask(ctx, &t)
		case <-time.After(w.pollInterval):
		}
	}
}

// pollOnce processes due tasks from the database and returns how many it saw.
func (w *PMSSyncWorker) pollOnce(ctx context.Context) int {
	tasks, err := w.store.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("Failed to fetch pending sync tasks")
		}
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *PMSSyncWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *PMSSyncWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Warn().Err(err).Msg("Redis BRPOP failed")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *PMSSyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	// The same task can arrive via a fast path and via polling.
	current, err := w.store.GetSyncTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to reload sync task")
		return
	}
	if current.Status == models.SyncTaskCompleted || current.Status == models.SyncTaskFailed {
		return
	}
	task = current

	var payload domain.PMSReservation
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.client.CreateReservation(ctx, payload); err != nil {
		metrics.IncPMSSync(false)
		if errors.Is(err, domain.ErrPMSOutcomeUnknown) || errors.Is(err, domain.ErrPMSRejected) {
			w.failTask(ctx, task, err)
			return
		}
		w.retryOrFail(ctx, task, err)
		return
	}
	metrics.IncPMSSync(true)

	if err := w.store.MarkSynced(ctx, task.ReservationID, w.now()); err != nil {
		w.logger.Error().Err(err).Int64("reservation_id", task.ReservationID).Msg("Delivered but failed to mark synced")
	}
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncTaskCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task completed")
	}
	w.logger.Info().Str("reservation", payload.ReservationNumber).Msg("Reservation delivered to PMS")
}

func (w *PMSSyncWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	next := w.now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncTaskRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to schedule retry")
	}
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", next).Msg("PMS delivery failed, will retry")
}

func (w *PMSSyncWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncTaskFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task failed")
	}
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Int64("reservation_id", task.ReservationID).Msg("PMS delivery gave up")
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Dead-letter push failed")
		}
	}
}

func (w *PMSSyncWorker) pushRedis(ctx context.Context, key string, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
