package ingest

import (
	"time"

	"tracking_service/internal/models"
)

const defaultCurrency = "RUB"

// * normalizeItem проверяет элемент батча и проставляет дефолты.
// Элемент без external_id отбрасывается (ok=false) — это не ошибка батча.
func normalizeItem(item models.IngestItem) (models.AdSnapshot, bool) {
	if item.ExternalID == "" {
		return models.AdSnapshot{}, false
	}

	currency := item.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	isActive := true
	if item.IsActive != nil {
		isActive = *item.IsActive
	}

	return models.AdSnapshot{
		ExternalID: item.ExternalID,
		Title:      item.Title,
		URL:        item.URL,
		SellerName: item.SellerName,
		SellerID:   item.SellerID,
		Location:   item.Location,
		Currency:   currency,
		Price:      item.Price,
		PostedAt:   item.PostedAt,
		IsActive:   isActive,
	}, true
}

// * normalizeBatch готовит батч к записи: источник по умолчанию avito,
// момент сбора — fetched_at из тела, иначе время получения запроса.
func normalizeBatch(payload models.IngestPayload, receivedAt time.Time) models.NormalizedBatch {
	source := payload.Source
	if source == "" {
		source = string(models.SourceAvito)
	}

	collectedAt := receivedAt
	if payload.FetchedAt != nil {
		collectedAt = *payload.FetchedAt
	}

	items := make([]models.AdSnapshot, 0, len(payload.Items))
	for _, item := range payload.Items {
		if snapshot, ok := normalizeItem(item); ok {
			items = append(items, snapshot)
		}
	}

	return models.NormalizedBatch{
		Source:      models.Source(source),
		TargetID:    payload.TargetID,
		CollectedAt: collectedAt,
		Items:       items,
	}
}
