package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
)

// ErrQueueClosed is returned when publishing to a closed memory queue
var ErrQueueClosed = errors.New("queue is closed")

// MemoryClient is an in-process Client backed by a buffered channel.
// Jobs are lost if the process exits; the scheduler's stale run reaper
// settles campaigns left in sending.
type MemoryClient struct {
	jobs      chan *models.DispatchJob
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewMemoryClient creates an in-memory queue holding up to capacity jobs
func NewMemoryClient(capacity int, logger *slog.Logger) *MemoryClient {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryClient{
		jobs:   make(chan *models.DispatchJob, capacity),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Publish enqueues job, blocking while the buffer is full. A blocked
// publisher returns ErrQueueClosed as soon as the queue is closed.
func (c *MemoryClient) Publish(ctx context.Context, job *models.DispatchJob) error {
	select {
	case <-c.done:
		return ErrQueueClosed
	default:
	}

	select {
	case <-c.done:
		return ErrQueueClosed
	case c.jobs <- job:
		c.logger.Debug("dispatch job published",
			slog.String("campaign_id", job.CampaignID.String()),
			slog.Int("recipients", len(job.Recipients)),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume runs jobs until ctx is cancelled or the queue is closed, then
// waits for in-flight runs
func (c *MemoryClient) Consume(ctx context.Context, handler JobHandler, concurrency int) error {
	concurrency = clampConcurrency(concurrency)

	c.logger.Info("starting in-memory queue consumer", slog.Int("concurrency", concurrency))

	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case semaphore <- struct{}{}:
		}

		var job *models.DispatchJob
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job = <-c.jobs:
		case <-c.done:
			select {
			case job = <-c.jobs:
			default:
				return nil
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-semaphore }()
			run(ctx, c.logger, handler, job)
		}()
	}
}

// Close stops accepting jobs and releases blocked publishers. Consumers
// drain what is already buffered. The jobs channel itself is never closed.
func (c *MemoryClient) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Health reports whether the queue still accepts jobs
func (c *MemoryClient) Health(ctx context.Context) error {
	select {
	case <-c.done:
		return ErrQueueClosed
	default:
		return nil
	}
}

// Len returns the number of buffered jobs
func (c *MemoryClient) Len() int {
	return len(c.jobs)
}

// Depth reports the buffered job count
func (c *MemoryClient) Depth(ctx context.Context) (int64, error) {
	return int64(c.Len()), nil
}
