package ingestHandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"tracking_service/internal/ingest"
	sl "tracking_service/internal/lib/logger"
	"tracking_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

// * Контракт воркера зафиксирован, поэтому тела ответов здесь свои,
// а не общий envelope resp.Response.
const (
	signatureHeader   = "X-Signature"
	idempotencyHeader = "X-Idempotency-Key" // принимается, пока не используется
)

type Response struct {
	Status      string `json:"status"`
	Created     int    `json:"created"`
	Updated     int    `json:"updated"`
	PricePoints int    `json:"price_points"`
}

type ErrResponse struct {
	Detail string `json:"detail"`
}

type Ingestor interface {
	ProcessSigned(ctx context.Context, raw []byte, sig string) (models.IngestSummary, error)
}

func New(
	log *slog.Logger,
	ingestor Ingestor,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ingest.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // * 1 МБ лимит запроса
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error("Failed to read request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrResponse{Detail: "Invalid JSON"})

			return
		}

		sig := r.Header.Get(signatureHeader)

		summary, err := ingestor.ProcessSigned(r.Context(), raw, sig)
		if err != nil {
			switch {
			case errors.Is(err, ingest.ErrInvalidSignature):
				log.Warn("Batch rejected: invalid signature")

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, ErrResponse{Detail: "Invalid signature"})

			case errors.Is(err, ingest.ErrInvalidPayload):
				log.Warn("Batch rejected: malformed payload")

				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, ErrResponse{Detail: "Invalid JSON"})

			default:
				// транзакция батча откатилась целиком, воркер может повторить
				log.Error("Failed to ingest batch", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, ErrResponse{Detail: "Internal error"})
			}

			return
		}

		log.Info("Batch ingested",
			slog.Int("created", summary.Created),
			slog.Int("updated", summary.Updated),
			slog.Int("price_points", summary.PricePoints),
		)

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, Response{
			Status:      "accepted",
			Created:     summary.Created,
			Updated:     summary.Updated,
			PricePoints: summary.PricePoints,
		})
	}
}
