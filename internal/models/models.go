package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Source string

const (
	SourceAvito Source = "avito"
)

type TargetMode string

const (
	ModeListing TargetMode = "listing"
)

// * ParseTarget — цель парсинга, созданная пользователем.
// Уникальность: (owner_id, source, url).
type ParseTarget struct {
	ID                int64      `json:"id"`
	Owner_id          int64      `json:"owner_id"`
	Source            Source     `json:"source"`
	Mode              TargetMode `json:"mode"`
	URL               string     `json:"url"`
	City              string     `json:"city"`
	Frequency_minutes int32      `json:"frequency_minutes"`
	Is_active         bool       `json:"is_active"`
	Created_at        time.Time  `json:"created_at"`
	Last_run_at       *time.Time `json:"last_run_at"`
	Next_run_at       *time.Time `json:"next_run_at"`
}

// * Ad — объявление площадки, дедупликация по паре (source, external_id).
// target_id — слабая ссылка: при удалении цели становится NULL.
type Ad struct {
	ID            int64               `json:"id"`
	Source        Source              `json:"source"`
	External_id   string              `json:"external_id"`
	Target_id     *int64              `json:"target_id"`
	Title         string              `json:"title"`
	URL           string              `json:"url"`
	Seller_name   string              `json:"seller_name"`
	Seller_id     string              `json:"seller_id"`
	Location      string              `json:"location"`
	Currency      string              `json:"currency"`
	Price_current decimal.NullDecimal `json:"price_current"`
	Posted_at     *time.Time          `json:"posted_at"`
	Is_active     bool                `json:"is_active"`
	Last_seen_at  time.Time           `json:"last_seen_at"`
	Created_at    time.Time           `json:"created_at"`
}

// * PricePoint — неизменяемая точка истории цены.
// Уникальность: (ad_id, collected_at, price).
type PricePoint struct {
	ID           int64           `json:"id"`
	Ad_id        int64           `json:"ad_id"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Collected_at time.Time       `json:"collected_at"`
}

// * IngestPayload — тело батча от воркера.
type IngestPayload struct {
	Items     []IngestItem `json:"items"`
	Source    string       `json:"source"`
	TargetID  *int64       `json:"target_id"`
	FetchedAt *time.Time   `json:"fetched_at"`
}

// * IngestItem — сырой элемент батча (недоверенные данные).
type IngestItem struct {
	ExternalID string           `json:"external_id"`
	Title      string           `json:"title"`
	URL        string           `json:"url"`
	SellerName string           `json:"seller_name"`
	SellerID   string           `json:"seller_id"`
	Location   string           `json:"location"`
	Currency   string           `json:"currency"`
	Price      *decimal.Decimal `json:"price"`
	PostedAt   *time.Time       `json:"posted_at"`
	IsActive   *bool            `json:"is_active"`
}

// * AdSnapshot — нормализованный элемент батча после валидации,
// с проставленными дефолтами.
type AdSnapshot struct {
	ExternalID string
	Title      string
	URL        string
	SellerName string
	SellerID   string
	Location   string
	Currency   string
	Price      *decimal.Decimal
	PostedAt   *time.Time
	IsActive   bool
}

// * NormalizedBatch — батч, готовый к записи одной транзакцией.
type NormalizedBatch struct {
	Source      Source
	TargetID    *int64
	CollectedAt time.Time
	Items       []AdSnapshot
}

type IngestSummary struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	PricePoints int `json:"price_points"`
}

// * ParseTask — задание воркеру на обработку цели.
type ParseTask struct {
	TargetID int64      `json:"target_id"`
	Source   Source     `json:"source"`
	Mode     TargetMode `json:"mode"`
	URL      string     `json:"url"`
	City     string     `json:"city,omitempty"`
}

// * AdsFilter — фильтры выдачи объявлений (все опциональны).
type AdsFilter struct {
	TargetID    *int64
	IsActive    *bool
	PostedAtGte *time.Time
}

// * AdWithHistory — объявление вместе с последними точками цены
// (для выдачи пользователю и кэша).
type AdWithHistory struct {
	Ad     Ad           `json:"ad"`
	Prices []PricePoint `json:"prices"`
}
