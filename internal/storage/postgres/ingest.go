package postgres

import (
	"context"
	"fmt"
	"time"

	"tracking_service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// ingestQuerier — срез pgx.Tx, достаточный для записи батча.
type ingestQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// * IngestBatch записывает батч целиком в одной транзакции:
// либо все upsert'ы и точки цены, либо ничего. Частичных коммитов нет,
// поэтому воркер может безопасно повторить весь батч после сбоя.
func (r *PostgresRepo) IngestBatch(ctx context.Context, batch models.NormalizedBatch) (models.IngestSummary, error) {
	const op = "storage.postgres.IngestBatch"

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return models.IngestSummary{}, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer rollback(ctx, tx)

	summary, err := ingestItems(ctx, tx, batch)
	if err != nil {
		return models.IngestSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.IngestSummary{}, fmt.Errorf("%s: commit: %w", op, err)
	}

	return summary, nil
}

func ingestItems(ctx context.Context, q ingestQuerier, batch models.NormalizedBatch) (models.IngestSummary, error) {
	var summary models.IngestSummary

	for _, item := range batch.Items {
		adID, created, err := reconcileAd(ctx, q, batch.Source, batch.TargetID, item)
		if err != nil {
			return models.IngestSummary{}, fmt.Errorf("reconcile %s: %w", item.ExternalID, err)
		}

		if created {
			summary.Created++
		} else {
			summary.Updated++
		}

		if item.Price == nil {
			continue
		}

		if err := recordPricePoint(ctx, q, adID, *item.Price, item.Currency, batch.CollectedAt); err != nil {
			return models.IngestSummary{}, fmt.Errorf("price point %s: %w", item.ExternalID, err)
		}

		// счётчик попыток: инкремент и когда вставка оказалась no-op
		summary.PricePoints++
	}

	return summary, nil
}

// * reconcileAd — единственная конфликтобезопасная операция над объявлением:
// вставка либо полная перезапись изменяемых полей (last-write-wins).
// Два конкурирующих вызова для одной пары (source, external_id) не создадут
// двух строк: ON CONFLICT разрешает гонку на стороне базы.
// xmax = 0 только у свежевставленной версии строки — так отличаем created от updated.
func reconcileAd(
	ctx context.Context,
	q ingestQuerier,
	source models.Source,
	targetID *int64,
	item models.AdSnapshot,
) (int64, bool, error) {
	const query = `
		INSERT INTO ads (
			source, external_id, target_id, title, url, seller_name, seller_id,
			location, currency, price_current, posted_at, is_active, last_seen_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		ON CONFLICT (source, external_id) DO UPDATE SET
			target_id     = EXCLUDED.target_id,
			title         = EXCLUDED.title,
			url           = EXCLUDED.url,
			seller_name   = EXCLUDED.seller_name,
			seller_id     = EXCLUDED.seller_id,
			location      = EXCLUDED.location,
			currency      = EXCLUDED.currency,
			price_current = EXCLUDED.price_current,
			posted_at     = EXCLUDED.posted_at,
			is_active     = EXCLUDED.is_active,
			last_seen_at  = now()
		RETURNING id, (xmax = 0) AS created
	`

	var (
		adID    int64
		created bool
	)

	err := q.QueryRow(
		ctx, query,
		source, item.ExternalID, targetID, item.Title, item.URL,
		item.SellerName, item.SellerID, item.Location, item.Currency,
		item.Price, item.PostedAt, item.IsActive,
	).Scan(&adID, &created)
	if err != nil {
		return 0, false, err
	}

	return adID, created, nil
}

// * recordPricePoint дописывает точку истории, если ровно такой ещё нет.
// Повторная отправка того же батча (ретрай воркера) — успешный no-op.
func recordPricePoint(
	ctx context.Context,
	q ingestQuerier,
	adID int64,
	price decimal.Decimal,
	currency string,
	collectedAt time.Time,
) error {
	const query = `
		INSERT INTO price_points (ad_id, price, currency, collected_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ad_id, collected_at, price) DO NOTHING
	`

	_, err := q.Exec(ctx, query, adID, price, currency, collectedAt)

	return err
}
