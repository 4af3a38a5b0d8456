package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"tracking_service/internal/lib/signature"
	"tracking_service/internal/models"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidPayload   = errors.New("invalid JSON")
)

type Storage interface {
	IngestBatch(ctx context.Context, batch models.NormalizedBatch) (models.IngestSummary, error)
}

// * Service принимает батчи от воркера: проверка подписи, разбор,
// нормализация и запись одной транзакцией через Storage.
type Service struct {
	secret  string
	storage Storage
	now     func() time.Time
}

func New(secret string, storage Storage) *Service {
	return &Service{
		secret:  secret,
		storage: storage,
		now:     time.Now,
	}
}

// * ProcessSigned — путь HTTP: тело не разбирается, пока подпись не сошлась.
func (s *Service) ProcessSigned(ctx context.Context, raw []byte, sig string) (models.IngestSummary, error) {
	if !signature.Valid(raw, sig, s.secret) {
		return models.IngestSummary{}, ErrInvalidSignature
	}

	return s.Process(ctx, raw)
}

// * Process разбирает уже аутентифицированный батч.
// Путь AMQP заходит сюда напрямую: доступ к очереди ограничен кредами брокера.
func (s *Service) Process(ctx context.Context, raw []byte) (models.IngestSummary, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return models.IngestSummary{}, ErrInvalidPayload
	}

	var payload models.IngestPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.IngestSummary{}, ErrInvalidPayload
	}

	batch := normalizeBatch(payload, s.now().UTC())

	return s.storage.IngestBatch(ctx, batch)
}
