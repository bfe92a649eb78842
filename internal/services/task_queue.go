package services

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/huangang/soundvault/internal/config"
	"github.com/huangang/soundvault/pkg/logger"
)

const (
	TaskTypeVerifyEmail = "mail:verify_email"
)

// MailTask is one outbound email job
type MailTask struct {
	Type   string `json:"type"`
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// MailProcessor delivers a mail task.
type MailProcessor func(context.Context, *MailTask) error

// MailQueue hands mail tasks to a processor without blocking the request
type MailQueue interface {
	// Enqueue schedules a task for delivery
	Enqueue(task *MailTask) error
	// IsAsync returns true if tasks are processed by a separate worker
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewMailQueue picks the Redis-backed queue when enabled and reachable,
// otherwise an in-process queue running processor.
func NewMailQueue(cfg *config.RedisConfig, processor MailProcessor) MailQueue {
	if cfg.Enabled {
		queue, err := NewAsyncQueue(cfg)
		if err == nil {
			logger.Infof("[MailQueue] Async queue initialized with Redis at %s", cfg.Addr)
			return queue
		}
		logger.Warnf("[MailQueue] Redis unavailable, falling back to sync mode: %v", err)
	} else {
		logger.Infof("[MailQueue] Sync queue initialized (Redis disabled)")
	}

	queue := NewSyncQueue()
	queue.SetProcessor(processor)
	return queue
}

// AsyncQueue implements MailQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := redisClientOpt(cfg)

	client := asynq.NewClient(redisOpt)

	if err := client.Ping(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *MailTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(task.Type, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue("mail"),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Str("type", task.Type).Msg("mail task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs tasks on a goroutine of the current process (no Redis)
type SyncQueue struct {
	processor MailProcessor
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function that delivers tasks
func (q *SyncQueue) SetProcessor(processor MailProcessor) {
	q.processor = processor
}

// Enqueue processes the task in a new goroutine so the request is not blocked
func (q *SyncQueue) Enqueue(task *MailTask) error {
	if q.processor == nil {
		logger.Warnf("[SyncQueue] No processor set, task %s will be dropped", task.Type)
		return nil
	}

	go func() {
		if err := q.processor(context.Background(), task); err != nil {
			logger.Warnf("[SyncQueue] Task %s failed: %v", task.Type, err)
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	return nil
}

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}
