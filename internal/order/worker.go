package order

import (
	"context"
	"time"

	"go.uber.org/zap"

	"order-processing-system/internal/models"
)

const intakePollInterval = 100 * time.Millisecond

// IntakeQueue hands out order payloads submitted for background processing.
type IntakeQueue interface {
	DequeueOrder(ctx context.Context) (*models.QueuedOrder, error)
}

// Worker drains the async intake queue and runs each payload through the
// same ProcessOrder path as the synchronous endpoint. A failed queued order
// is logged and dropped: failure guarantees no partial state, so the caller
// can safely resubmit.
type Worker struct {
	service *Service
	queue   IntakeQueue
	logger  *zap.Logger
}

func NewWorker(service *Service, queue IntakeQueue, logger *zap.Logger) *Worker {
	return &Worker{service: service, queue: queue, logger: logger}
}

func (w *Worker) Run(ctx context.Context, workerID int) {
	w.logger.Info("order worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("order worker stopped", zap.Int("worker_id", workerID))
			return
		default:
			job, err := w.queue.DequeueOrder(ctx)
			if err != nil {
				w.logger.Error("failed to dequeue order", zap.Int("worker_id", workerID), zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			if job == nil {
				time.Sleep(intakePollInterval)
				continue
			}

			ord, err := w.service.ProcessOrder(ctx, job.Products)
			if err != nil {
				w.logger.Warn("queued order failed",
					zap.String("job_id", job.JobID),
					zap.Error(err))
				continue
			}

			w.logger.Info("queued order processed",
				zap.String("job_id", job.JobID),
				zap.String("order_id", ord.ID))
		}
	}
}
