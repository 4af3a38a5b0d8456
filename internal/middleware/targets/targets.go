package targets

import (
	"context"

	"tracking_service/internal/models"
)

type PostgresStorage interface {
	SaveTarget(ctx context.Context, ownerID int64, targetURL, city string, frequencyMinutes int32) (int64, error)
}

type RabbitMQ interface {
	PublishJSON(ctx context.Context, msg any) error
}

// * TargetOperator сохраняет цель и сразу ставит её в очередь воркеру,
// чтобы первые объявления появились не дожидаясь планировщика.
type TargetOperator struct {
	Postgres PostgresStorage
	Rabbitmq RabbitMQ
}

func New(p PostgresStorage, rabbit RabbitMQ) *TargetOperator {
	return &TargetOperator{
		Postgres: p,
		Rabbitmq: rabbit,
	}
}

func (t *TargetOperator) SaveTarget(
	ctx context.Context,
	ownerID int64,
	targetURL, city string,
	frequencyMinutes int32,
) (int64, error) {
	targetID, err := t.Postgres.SaveTarget(ctx, ownerID, targetURL, city, frequencyMinutes)
	if err != nil {
		return 0, err
	}

	task := models.ParseTask{
		TargetID: targetID,
		Source:   models.SourceAvito,
		Mode:     models.ModeListing,
		URL:      targetURL,
		City:     city,
	}

	if err := t.Rabbitmq.PublishJSON(ctx, task); err != nil {
		return 0, err
	}

	return targetID, nil
}
