package addTarget

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	resp "tracking_service/internal/lib/api/response"
	sl "tracking_service/internal/lib/logger"
	authMiddlware "tracking_service/internal/middleware/auth"
	"tracking_service/internal/middleware/targets"
	"tracking_service/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	validator "github.com/go-playground/validator/v10"
)

const defaultFrequencyMinutes = 30

type Request struct {
	URL              string `json:"url" validate:"required,url"`
	City             string `json:"city"`
	FrequencyMinutes int32  `json:"frequency_minutes" validate:"omitempty,min=5"`
}

type Response struct {
	resp.Response
	TargetID int64 `json:"target_id"`
}

func New(
	log *slog.Logger,
	targetOp *targets.TargetOperator,
	validate *validator.Validate,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.targets.add.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // * 1 МБ лимит запроса
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		log.Info("Request body decoded")

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		if req.FrequencyMinutes == 0 {
			req.FrequencyMinutes = defaultFrequencyMinutes
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

		targetID, err := targetOp.SaveTarget(ctx, userID, req.URL, req.City, req.FrequencyMinutes)
		if err != nil {
			if errors.Is(err, storage.ErrTargetExists) {
				log.Info("Target already exists", slog.String("url", req.URL))

				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("Target already exists"))

				return
			}

			log.Error("Failed to save target", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Target saved successfully",
			slog.Int64("target_id", targetID),
			slog.Int64("user_id", userID),
		)

		render.Status(r, http.StatusCreated)
		ResponseOK(w, r, targetID)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, id int64) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		TargetID: id,
	})
}
