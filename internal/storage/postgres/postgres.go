package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tracking_service/internal/config"
	"tracking_service/internal/models"
	"tracking_service/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	dsn := dsn(cfg)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%s: ping failed: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// * Migrate создаёт схему. Уникальные ограничения — единственный механизм
// защиты от дублей при конкурентных батчах, поэтому живут в схеме, а не в коде.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	// users принадлежит auth-сервису; минимальная таблица нужна
	// для FK при автономном разворачивании.
	const schema = `
		CREATE TABLE IF NOT EXISTS users (
			id         BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS parse_targets (
			id                BIGSERIAL PRIMARY KEY,
			owner_id          BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			source            VARCHAR(32) NOT NULL DEFAULT 'avito',
			mode              VARCHAR(16) NOT NULL DEFAULT 'listing',
			url               VARCHAR(2000) NOT NULL,
			city              VARCHAR(64) NOT NULL DEFAULT '',
			frequency_minutes INT NOT NULL DEFAULT 30 CHECK (frequency_minutes >= 5),
			is_active         BOOLEAN NOT NULL DEFAULT TRUE,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_run_at       TIMESTAMPTZ,
			next_run_at       TIMESTAMPTZ,
			CONSTRAINT parse_target_owner_source_url_uniq UNIQUE (owner_id, source, url)
		);
		CREATE INDEX IF NOT EXISTS parse_target_next_run_idx ON parse_targets (next_run_at);
		CREATE INDEX IF NOT EXISTS parse_target_owner_active_idx ON parse_targets (owner_id, is_active);

		CREATE TABLE IF NOT EXISTS ads (
			id            BIGSERIAL PRIMARY KEY,
			source        VARCHAR(32) NOT NULL,
			external_id   VARCHAR(128) NOT NULL,
			target_id     BIGINT REFERENCES parse_targets(id) ON DELETE SET NULL,
			title         VARCHAR(512) NOT NULL DEFAULT '',
			url           VARCHAR(2000) NOT NULL DEFAULT '',
			seller_name   VARCHAR(256) NOT NULL DEFAULT '',
			seller_id     VARCHAR(128) NOT NULL DEFAULT '',
			location      VARCHAR(256) NOT NULL DEFAULT '',
			currency      VARCHAR(8) NOT NULL DEFAULT 'RUB',
			price_current NUMERIC(12,2),
			posted_at     TIMESTAMPTZ,
			is_active     BOOLEAN NOT NULL DEFAULT TRUE,
			last_seen_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT ad_source_external_id_uniq UNIQUE (source, external_id)
		);
		CREATE INDEX IF NOT EXISTS ad_target_idx ON ads (target_id);
		CREATE INDEX IF NOT EXISTS ad_last_seen_idx ON ads (last_seen_at);
		CREATE INDEX IF NOT EXISTS ad_posted_at_idx ON ads (posted_at);

		CREATE TABLE IF NOT EXISTS price_points (
			id           BIGSERIAL PRIMARY KEY,
			ad_id        BIGINT NOT NULL REFERENCES ads(id) ON DELETE CASCADE,
			price        NUMERIC(12,2) NOT NULL,
			currency     VARCHAR(8) NOT NULL DEFAULT 'RUB',
			collected_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT price_point_ad_dt_price_uniq UNIQUE (ad_id, collected_at, price)
		);
		CREATE INDEX IF NOT EXISTS price_point_ad_dt_idx ON price_points (ad_id, collected_at);
	`

	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * SaveTarget добавляет цель парсинга в базу данных
func (r *PostgresRepo) SaveTarget(
	ctx context.Context,
	ownerID int64,
	targetURL, city string,
	frequencyMinutes int32,
) (int64, error) {
	const op = "storage.postgres.SaveTarget"

	const query = `
		INSERT INTO parse_targets (owner_id, source, mode, url, city, frequency_minutes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64

	err := r.pool.QueryRow(
		ctx, query,
		ownerID, models.SourceAvito, models.ModeListing, targetURL, city, frequencyMinutes,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == storage.UniqueViolation {
			return 0, storage.ErrTargetExists
		}

		return 0, fmt.Errorf("%s: failed to save target: %w", op, err)
	}

	return id, nil
}

// * Targets возвращает слайс целей пользователя для вывода
func (r *PostgresRepo) Targets(ctx context.Context, ownerID, limit, offset int64) ([]models.ParseTarget, int64, error) {
	const op = "storage.postgres.Targets"

	// * Начинаем read-only транзакцию
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer rollback(ctx, tx)

	query := `
		SELECT id, owner_id, source, mode, url, city, frequency_minutes, is_active, created_at, last_run_at, next_run_at
		FROM parse_targets
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := tx.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: query: %w", op, err)
	}

	targets, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.ParseTarget])
	if err != nil {
		return nil, 0, fmt.Errorf("%s: collect: %w", op, err)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM parse_targets WHERE owner_id = $1`
	err = tx.QueryRow(ctx, countQuery, ownerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return targets, total, nil
}

// * DeactivateTarget мягко выключает цель (is_active=false), строки не удаляются
func (r *PostgresRepo) DeactivateTarget(ctx context.Context, targetID, ownerID int64) error {
	const op = "storage.postgres.DeactivateTarget"

	const query = `
		UPDATE parse_targets
		SET is_active = FALSE
		WHERE id = $1 AND owner_id = $2
	`

	cmd, err := r.pool.Exec(ctx, query, targetID, ownerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmd.RowsAffected() == 0 {
		return storage.ErrTargetNotFound
	}

	return nil
}

// * ClaimDueTargets атомарно забирает цели, которым пора на обработку,
// и сдвигает им last_run_at/next_run_at. SKIP LOCKED позволяет гонять
// несколько экземпляров диспетчера без двойной выдачи.
func (r *PostgresRepo) ClaimDueTargets(ctx context.Context, limit int) ([]models.ParseTarget, error) {
	const op = "storage.postgres.ClaimDueTargets"

	const query = `
		UPDATE parse_targets t
		SET last_run_at = now(),
			next_run_at = now() + make_interval(mins => t.frequency_minutes)
		FROM (
			SELECT id
			FROM parse_targets
			WHERE is_active AND (next_run_at IS NULL OR next_run_at <= now())
			ORDER BY next_run_at NULLS FIRST
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		) due
		WHERE t.id = due.id
		RETURNING t.id, t.owner_id, t.source, t.mode, t.url, t.city, t.frequency_minutes, t.is_active, t.created_at, t.last_run_at, t.next_run_at
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}

	targets, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.ParseTarget])
	if err != nil {
		return nil, fmt.Errorf("%s: collect: %w", op, err)
	}

	return targets, nil
}

// * Ads возвращает объявления пользователя с фильтрами и пагинацией.
// Видимость через join на цели: пользователь видит объявления своих целей.
func (r *PostgresRepo) Ads(
	ctx context.Context,
	ownerID int64,
	filter models.AdsFilter,
	limit, offset int64,
) ([]models.Ad, int64, error) {
	const op = "storage.postgres.Ads"

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer rollback(ctx, tx)

	where := ` FROM ads a JOIN parse_targets t ON t.id = a.target_id WHERE t.owner_id = $1`
	args := []any{ownerID}

	if filter.TargetID != nil {
		args = append(args, *filter.TargetID)
		where += fmt.Sprintf(" AND a.target_id = $%d", len(args))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where += fmt.Sprintf(" AND a.is_active = $%d", len(args))
	}
	if filter.PostedAtGte != nil {
		args = append(args, *filter.PostedAtGte)
		where += fmt.Sprintf(" AND a.posted_at >= $%d", len(args))
	}

	const columns = `SELECT a.id, a.source, a.external_id, a.target_id, a.title, a.url, a.seller_name, a.seller_id,
		a.location, a.currency, a.price_current, a.posted_at, a.is_active, a.last_seen_at, a.created_at`

	args = append(args, limit, offset)
	query := columns + where + fmt.Sprintf(" ORDER BY a.last_seen_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: query: %w", op, err)
	}

	ads, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Ad])
	if err != nil {
		return nil, 0, fmt.Errorf("%s: collect: %w", op, err)
	}

	var total int64
	err = tx.QueryRow(ctx, "SELECT COUNT(*)"+where, args[:len(args)-2]...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return ads, total, nil
}

// * AdByID возвращает объявление по ID в рамках видимости пользователя:
// чужое объявление неотличимо от несуществующего.
func (r *PostgresRepo) AdByID(ctx context.Context, adID, ownerID int64) (models.Ad, error) {
	const op = "storage.postgres.AdByID"

	const query = `
		SELECT a.id, a.source, a.external_id, a.target_id, a.title, a.url, a.seller_name, a.seller_id,
			a.location, a.currency, a.price_current, a.posted_at, a.is_active, a.last_seen_at, a.created_at
		FROM ads a
		JOIN parse_targets t ON t.id = a.target_id
		WHERE a.id = $1 AND t.owner_id = $2
	`

	rows, err := r.pool.Query(ctx, query, adID, ownerID)
	if err != nil {
		return models.Ad{}, fmt.Errorf("%s: query: %w", op, err)
	}

	ad, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.Ad])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ad{}, storage.ErrAdNotFound
		}

		return models.Ad{}, fmt.Errorf("%s: collect: %w", op, err)
	}

	return ad, nil
}

// * PricePoints возвращает последние точки истории цены объявления
func (r *PostgresRepo) PricePoints(ctx context.Context, adID int64, limit int64) ([]models.PricePoint, error) {
	const op = "storage.postgres.PricePoints"

	const query = `
		SELECT id, ad_id, price, currency, collected_at
		FROM price_points
		WHERE ad_id = $1
		ORDER BY collected_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, adID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}

	points, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.PricePoint])
	if err != nil {
		return nil, fmt.Errorf("%s: collect: %w", op, err)
	}

	return points, nil
}

// * Close закрывает соединение с базой данных.
func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		fmt.Printf("failed to rollback transaction: %v\n", err)
	}
}

// * dsn формирует конфигурацию базы данных.
func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
