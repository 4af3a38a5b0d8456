package getAdByID

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
	"tracking_service/internal/models"
	"tracking_service/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Ad     models.Ad           `json:"ad"`
	Prices []models.PricePoint `json:"prices"`
}

type AdGetter interface {
	AdByID(ctx context.Context, adID, ownerID int64) (models.AdWithHistory, error)
}

func New(
	log *slog.Logger,
	adOp AdGetter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ads.get_by_id.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		adID := parseAdID(r)
		if adID == -1 {
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

		// чужое объявление для пользователя не существует — 404
		ad, err := adOp.AdByID(ctx, adID, userID)
		if err != nil {
			if errors.Is(err, storage.ErrAdNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Ad not found"))

				return
			}

			log.Error("Failed to get ad",
				sl.Err(err),
				slog.Int64("user_id", userID),
				slog.Int64("ad_id", adID),
			)

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		w.Header().Set("Cache-Control", "private, max-age=60")

		log.Info("Ad got successfully", slog.Int64("ad_id", adID))

		ResponseOK(w, r, ad)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, ad models.AdWithHistory) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		Ad:       ad.Ad,
		Prices:   ad.Prices,
	})
}

func parseAdID(r *http.Request) int64 {
	adIDStr := r.URL.Query().Get("id")
	if adIDStr == "" {
		return -1
	}

	adID, err := strconv.ParseInt(adIDStr, 10, 64)
	if err != nil || adID < 0 {
		return -1
	}

	return adID
}
