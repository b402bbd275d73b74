package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/streamhub/internal/apperror"
	"github.com/sakif/streamhub/internal/auth"
	"github.com/sakif/streamhub/internal/model"
	"github.com/sakif/streamhub/internal/repository"
	"github.com/sakif/streamhub/internal/service"
)

// UserHandler serves account maintenance and the aggregated profile views.
type UserHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(profiles *service.ProfileService, logger *slog.Logger) *UserHandler {
	return &UserHandler{profiles: profiles, logger: logger}
}

type updateAccountRequest struct {
	FullName *string `json:"fullName" validate:"omitempty,max=80"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

// HandleUpdateAccount applies partial fullName/email changes. A request
// carrying neither field is rejected.
//
// HTTP: PATCH /api/v1/users/update-account (protected)
func (h *UserHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid request body"))
		return
	}
	if fields := checkStruct(req); fields != nil {
		writeValidationErrors(w, fields)
		return
	}

	updated, err := h.profiles.UpdateAccount(r.Context(), user.ID, repository.ProfileUpdate{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, updated, "account details updated successfully")
}

// HandleUpdateAvatar replaces the user's avatar from a multipart upload.
//
// HTTP: PATCH /api/v1/users/update-avatar (protected)
func (h *UserHandler) HandleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", h.profiles.UpdateAvatar, "avatar updated successfully")
}

// HandleUpdateCoverImage replaces the user's cover image from a multipart
// upload.
//
// HTTP: PATCH /api/v1/users/update-cover-image (protected)
func (h *UserHandler) HandleUpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", h.profiles.UpdateCoverImage, "cover image updated successfully")
}

func (h *UserHandler) updateImage(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	apply func(ctx context.Context, userID, localPath string) (*model.PublicUser, error),
	message string,
) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, apperror.ValidationFailed("", "request must be multipart/form-data"))
		return
	}

	path, err := saveUpload(r, field)
	if err != nil {
		writeError(w, err)
		return
	}
	defer removeTemp(path)

	updated, err := apply(r.Context(), user.ID, path)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, updated, message)
}

// HandleChannelProfile returns the aggregated channel view for a username.
// The gate is optional here: anonymous viewers get isSubscribed=false.
//
// HTTP: GET /api/v1/users/channel/{username}
func (h *UserHandler) HandleChannelProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	requesterID := ""
	if user, ok := auth.CurrentUser(r.Context()); ok {
		requesterID = user.ID
	}

	profile, err := h.profiles.Channel(r.Context(), username, requesterID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, profile, "channel profile fetched successfully")
}

// HandleWatchHistory returns the authenticated user's watch history in
// stored order, each entry resolved with its owner details.
//
// HTTP: GET /api/v1/users/watch-history (protected)
func (h *UserHandler) HandleWatchHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}

	history, err := h.profiles.WatchHistory(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, history, "watch history fetched successfully")
}
