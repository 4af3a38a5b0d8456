package ads

import (
	"context"
	"errors"
	"log/slog"

	sl "tracking_service/internal/lib/logger"
	"tracking_service/internal/models"
	"tracking_service/internal/storage"
)

const historyLimit = 50

type RedisStorage interface {
	SaveAd(ctx context.Context, ownerID int64, ad models.AdWithHistory) error
	Ad(ctx context.Context, adID, ownerID int64) (models.AdWithHistory, error)
}

type PostgresStorage interface {
	AdByID(ctx context.Context, adID, ownerID int64) (models.Ad, error)
	PricePoints(ctx context.Context, adID int64, limit int64) ([]models.PricePoint, error)
}

// * AdOperator отдаёт объявление с историей цены: сперва кэш, потом база.
// Видимость всегда в рамках владельца: и в запросе к базе, и в ключе кэша.
type AdOperator struct {
	log      *slog.Logger
	Redis    RedisStorage
	Postgres PostgresStorage
}

func New(log *slog.Logger, p PostgresStorage, r RedisStorage) *AdOperator {
	return &AdOperator{
		log:      log,
		Redis:    r,
		Postgres: p,
	}
}

func (a *AdOperator) AdByID(ctx context.Context, adID, ownerID int64) (models.AdWithHistory, error) {
	ad, err := a.Redis.Ad(ctx, adID, ownerID)
	switch {
	case err == nil:
		return ad, nil

	case !errors.Is(err, storage.ErrAdNotFound):
		return models.AdWithHistory{}, err
	}

	row, err := a.Postgres.AdByID(ctx, adID, ownerID)
	if err != nil {
		return models.AdWithHistory{}, err
	}

	points, err := a.Postgres.PricePoints(ctx, adID, historyLimit)
	if err != nil {
		return models.AdWithHistory{}, err
	}

	ad = models.AdWithHistory{
		Ad:     row,
		Prices: points,
	}

	// деградация кэша не мешает отдать ответ
	if err := a.Redis.SaveAd(ctx, ownerID, ad); err != nil {
		a.log.Warn("failed to cache ad",
			slog.Int64("ad_id", adID),
			sl.Err(err),
		)
	}

	return ad, nil
}
