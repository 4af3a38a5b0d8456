package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tracking_service/internal/models"
	"tracking_service/internal/storage"

	"github.com/redis/go-redis/v9"
)

type RedisRepo struct {
	client     *redis.Client
	DefaultTTL time.Duration
}

func New(ctx context.Context, address string, db int, defautTTL time.Duration) (*RedisRepo, error) {
	const op = "storage.redis.New"

	rdb := redis.NewClient(&redis.Options{
		Addr: address,
		DB:   db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client:     rdb,
		DefaultTTL: defautTTL,
	}, nil
}

// * SaveAd кладёт объявление с историей в кэш с TTL по умолчанию.
// TTL короткий: last-write-wins означает, что свежая запись может
// прийти в любой момент, кэш лишь снимает горячие чтения.
// Ключ включает владельца: кэш не должен отдавать чужие объявления.
func (r *RedisRepo) SaveAd(ctx context.Context, ownerID int64, ad models.AdWithHistory) error {
	const op = "storage.redis.SaveAd"

	data, err := json.Marshal(ad)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	key := fmt.Sprintf("ad:%d:owner:%d", ad.Ad.ID, ownerID)

	if err := r.client.Set(
		ctx,
		key,
		data,
		r.DefaultTTL,
	).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisRepo) Ad(ctx context.Context, adID, ownerID int64) (models.AdWithHistory, error) {
	const op = "storage.redis.Ad"

	var ad models.AdWithHistory

	key := fmt.Sprintf("ad:%d:owner:%d", adID, ownerID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ad, storage.ErrAdNotFound
		}
		return ad, fmt.Errorf("%s: %w", op, err)
	}

	if err := json.Unmarshal(data, &ad); err != nil {
		return ad, fmt.Errorf("%s: %w", op, err)
	}

	return ad, nil
}

// Close закрывает соединение с базой данных.
func (r *RedisRepo) Close() {
	r.client.Close()
}
