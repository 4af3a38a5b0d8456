package dispatcher

import (
	"context"
	"log/slog"
	"time"

	sl "tracking_service/internal/lib/logger"
	"tracking_service/internal/models"
)

type PostgresStorage interface {
	ClaimDueTargets(ctx context.Context, limit int) ([]models.ParseTarget, error)
}

type RabbitMQ interface {
	PublishJSON(ctx context.Context, msg any) error
}

// * Dispatcher раз в poll_interval забирает созревшие цели и публикует
// задания воркеру. ClaimDueTargets сразу сдвигает next_run_at, так что
// упавшая публикация означает лишь пропуск одного цикла, не дубль.
type Dispatcher struct {
	log          *slog.Logger
	postgres     PostgresStorage
	rabbitmq     RabbitMQ
	pollInterval time.Duration
	batchSize    int
}

func New(
	log *slog.Logger,
	p PostgresStorage,
	rabbit RabbitMQ,
	pollInterval time.Duration,
	batchSize int,
) *Dispatcher {
	return &Dispatcher{
		log:          log,
		postgres:     p,
		rabbitmq:     rabbit,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	const op = "dispatcher.Run"

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.dispatchDue(ctx)
		}
	}
}

func (d *Dispatcher) dispatchDue(ctx context.Context) {
	const op = "dispatcher.dispatchDue"

	targets, err := d.postgres.ClaimDueTargets(ctx, d.batchSize)
	if err != nil {
		d.log.Error("failed to claim due targets", slog.String("op", op), sl.Err(err))
		return
	}

	for _, target := range targets {
		task := models.ParseTask{
			TargetID: target.ID,
			Source:   target.Source,
			Mode:     target.Mode,
			URL:      target.URL,
			City:     target.City,
		}

		if err := d.rabbitmq.PublishJSON(ctx, task); err != nil {
			d.log.Error("failed to publish parse task",
				slog.String("op", op),
				slog.Int64("target_id", target.ID),
				sl.Err(err),
			)
		}
	}

	if len(targets) > 0 {
		d.log.Info("parse tasks dispatched",
			slog.String("op", op),
			slog.Int("count", len(targets)),
		)
	}
}
