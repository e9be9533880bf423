package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/metrics"
)

// ErrQueueFull indicates the inbound queue has no room; the webhook should
// answer 503 and let the gateway redeliver.
var ErrQueueFull = errors.New("pipeline queue full")

// Pool processes inbound payloads concurrently, one task per event. Each
// task runs under its own deadline derived from the pool's context, so a
// webhook caller going away does not cancel processing, while pool shutdown
// abandons in-flight work cleanly.
type Pool struct {
	service     *Service
	queue       chan []byte
	workers     int
	taskTimeout time.Duration
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPool creates a Pool of workers over a bounded queue.
func NewPool(log *slog.Logger, service *Service, workers, queueSize int, taskTimeout time.Duration) *Pool {
	if log == nil {
		log = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if taskTimeout <= 0 {
		taskTimeout = 2 * time.Minute
	}
	return &Pool{
		service:     service,
		queue:       make(chan []byte, queueSize),
		workers:     workers,
		taskTimeout: taskTimeout,
		logger:      log.With(slog.String("service", "pipeline_pool")),
	}
}

// Start launches the workers. Safe to call once.
func (p *Pool) Start() {
	p.once.Do(func() {
		p.ctx, p.cancel = context.WithCancel(context.Background())
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.run()
		}
		p.logger.Info("workers started", slog.Int("workers", p.workers))
	})
}

// Enqueue submits a raw payload for processing without blocking.
func (p *Pool) Enqueue(raw []byte) error {
	if p.ctx == nil || p.ctx.Err() != nil {
		return ErrQueueFull
	}
	select {
	case p.queue <- raw:
		metrics.QueueDepth.Set(float64(len(p.queue)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops the workers, abandoning queued and in-flight tasks once
// the context deadline passes.
func (p *Pool) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case raw := <-p.queue:
			metrics.QueueDepth.Set(float64(len(p.queue)))
			taskCtx, cancel := context.WithTimeout(p.ctx, p.taskTimeout)
			if err := p.service.Process(taskCtx, raw); err != nil {
				p.logger.Error("event processing failed", slog.Any("error", err))
			}
			cancel()
		}
	}
}
