package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zombar/monitorclient/internal/metrics"
	"github.com/zombar/monitorclient/internal/models"
	"github.com/zombar/monitorclient/internal/view"
)

// Journal stores the rendered outcome of every job. *database.DB implements it.
type Journal interface {
	SaveResult(r *models.BatchResult) error
}

// Queue priorities: higher value = higher priority
var queuePriorities = map[string]int{
	QueueAnalysis: 6,
	QueueParsing:  4,
}

// Worker wraps the Asynq server for processing tasks
type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	journal     Journal
	dispatcher  view.Dispatcher
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.BatchMetrics
}

// WorkerConfig contains configuration for the queue worker
type WorkerConfig struct {
	RedisAddr   string
	Concurrency int
	Logger      *slog.Logger
	Metrics     *metrics.BatchMetrics
}

// NewWorker creates a new queue worker that sends jobs through dispatcher
// and records them in journal.
func NewWorker(cfg WorkerConfig, journal Journal, dispatcher view.Dispatcher) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	serverCfg := asynq.Config{
		Concurrency: cfg.Concurrency,

		// Queues are processed proportionally to their priority
		Queues:         queuePriorities,
		StrictPriority: false,

		// Graceful shutdown timeout
		ShutdownTimeout: 30 * time.Second,

		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("task processing error",
				"task_type", task.Type(),
				"error", err,
			)
		}),
	}

	w := newWorker(journal, dispatcher, logger, cfg.Metrics)
	w.server = asynq.NewServer(redisOpt, serverCfg)
	w.concurrency = cfg.Concurrency
	return w
}

func newWorker(journal Journal, dispatcher view.Dispatcher, logger *slog.Logger, m *metrics.BatchMetrics) *Worker {
	w := &Worker{
		mux:        asynq.NewServeMux(),
		journal:    journal,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
	}
	w.registerHandlers()
	return w
}

// registerHandlers registers all task handlers with the worker
func (w *Worker) registerHandlers() {
	w.mux.HandleFunc(TypeAnalyzeText, w.handleAnalyzeText)
	w.mux.HandleFunc(TypeAnalyzeImage, w.handleAnalyzeImage)
	w.mux.HandleFunc(TypeParseURL, w.handleParseURL)
}

// Start starts the worker to begin processing tasks. It blocks until the
// process receives a termination signal.
func (w *Worker) Start() error {
	w.logger.Info("starting asynq worker",
		"concurrency", w.concurrency,
		"queues", queuePriorities,
	)

	if err := w.server.Run(w.mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the worker
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down asynq worker")
	w.server.Shutdown()
}

// Handler returns the task mux (for testing)
func (w *Worker) Handler() asynq.Handler {
	return w.mux
}
