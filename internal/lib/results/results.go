package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tracking_service/internal/ingest"
	sl "tracking_service/internal/lib/logger"
	"tracking_service/internal/models"
)

type Ingestor interface {
	Process(ctx context.Context, raw []byte) (models.IngestSummary, error)
}

type Consumer interface {
	Consume(ctx context.Context, handler func(ctx context.Context, body []byte) error) error
}

// * Handler принимает результаты воркера из очереди.
// Тело сообщения — тот же JSON батча, что и на HTTP-эндпоинте ингеста;
// подпись не нужна, доступ к очереди ограничен кредами брокера.
type Handler struct {
	log      *slog.Logger
	ingestor Ingestor
	consumer Consumer
}

func New(log *slog.Logger, ing Ingestor, c Consumer) *Handler {
	return &Handler{
		log:      log,
		ingestor: ing,
		consumer: c,
	}
}

func (h *Handler) Run(ctx context.Context) error {
	return h.consumer.Consume(ctx, h.handleMessage)
}

// handleMessage возвращает ошибку только на временных сбоях — такие
// сообщения уходят в requeue. Битый батч не станет валидным от повтора,
// поэтому он логируется и подтверждается, иначе очередь крутит его вечно.
func (h *Handler) handleMessage(ctx context.Context, body []byte) error {
	const op = "results.handleMessage"

	if _, err := h.ingestor.Process(ctx, body); err != nil {
		if errors.Is(err, ingest.ErrInvalidPayload) {
			h.log.Warn("dropping malformed result batch", sl.Err(err))

			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
