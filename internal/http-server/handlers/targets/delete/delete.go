package deleteTarget

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	resp "tracking_service/internal/lib/api/response"
	sl "tracking_service/internal/lib/logger"
	authMiddlware "tracking_service/internal/middleware/auth"
	"tracking_service/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
}

type TargetDeactivator interface {
	DeactivateTarget(ctx context.Context, targetID, ownerID int64) error
}

// * Удаление цели — мягкое: is_active=false, объявления и история остаются.
func New(
	log *slog.Logger,
	targetOp TargetDeactivator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.targets.delete.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		targetID := parseTargetID(r)
		if targetID == -1 {
			log.Error("Invalid id")

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Invalid id"))

			return
		}

		userID, ok := r.Context().Value(authMiddlware.UserIDKey).(int64)
		if !ok || userID <= 0 {
			log.Error("User ID not found in context")

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Unauthorized"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		err := targetOp.DeactivateTarget(ctx, targetID, userID)
		if err != nil {
			if errors.Is(err, storage.ErrTargetNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Target not found"))

				return
			}

			log.Error("Failed to deactivate target",
				sl.Err(err),
				slog.Int64("user_id", userID),
				slog.Int64("target_id", targetID),
			)

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Target deactivated successfully",
			slog.Int64("target_id", targetID),
			slog.Int64("user_id", userID),
		)

		ResponseOK(w, r)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
	})
}

func parseTargetID(r *http.Request) int64 {
	targetIDStr := r.URL.Query().Get("id")
	if targetIDStr == "" {
		return -1
	}

	targetID, err := strconv.ParseInt(targetIDStr, 10, 64)
	if err != nil || targetID < 0 {
		return -1
	}

	return targetID
}
