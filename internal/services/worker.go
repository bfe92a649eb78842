package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/huangang/soundvault/internal/config"
	"github.com/huangang/soundvault/pkg/logger"
)

// Worker processes mail tasks from Redis
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor MailProcessor
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewWorker returns nil when Redis is disabled
func NewWorker(cfg *config.RedisConfig, processor MailProcessor) *Worker {
	if !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisClientOpt(cfg),
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"mail": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Warnf("[Worker] Error processing task %s: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: processor,
	}
}

// Start begins processing tasks
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeVerifyEmail, w.handleMailTask)

	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.running = true
	logger.Infof("[Worker] Mail worker started")
	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Infof("[Worker] Shutting down...")
	w.server.Shutdown()
	w.running = false
	logger.Infof("[Worker] Shutdown complete")
}

func (w *Worker) handleMailTask(ctx context.Context, t *asynq.Task) error {
	return decodeAndProcess(ctx, t.Payload(), w.processor)
}

func decodeAndProcess(ctx context.Context, payload []byte, processor MailProcessor) error {
	var task MailTask
	if err := json.Unmarshal(payload, &task); err != nil {
		// Malformed payloads will never succeed; skip retries.
		return fmt.Errorf("decode mail task: %v: %w", err, asynq.SkipRetry)
	}

	if processor == nil {
		logger.Warnf("[Worker] No processor set, task %s dropped", task.Type)
		return nil
	}

	return processor(ctx, &task)
}
