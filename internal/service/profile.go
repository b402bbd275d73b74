package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/streamhub/internal/apperror"
	"github.com/sakif/streamhub/internal/model"
	"github.com/sakif/streamhub/internal/repository"
	"github.com/sakif/streamhub/internal/storage"
)

// ProfileService serves the account-maintenance operations and the two
// read-only aggregated views (channel profile, watch history).
type ProfileService struct {
	users         repository.UserRepository
	profiles      repository.ProfileRepository
	uploader      storage.Uploader
	uploadTimeout time.Duration
	logger        *slog.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	uploader storage.Uploader,
	uploadTimeout time.Duration,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		users:         users,
		profiles:      profiles,
		uploader:      uploader,
		uploadTimeout: uploadTimeout,
		logger:        logger,
	}
}

// UpdateAccount applies the optional fullName/email changes. The repository
// rejects the call when both are absent.
func (s *ProfileService) UpdateAccount(ctx context.Context, userID string, update repository.ProfileUpdate) (*model.PublicUser, error) {
	user, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account details updated", slog.String("userID", userID))
	return user, nil
}

// UpdateAvatar uploads the new avatar and swaps the stored reference.
func (s *ProfileService) UpdateAvatar(ctx context.Context, userID, localPath string) (*model.PublicUser, error) {
	return s.updateImage(ctx, userID, localPath, "avatar", s.users.UpdateAvatar)
}

// UpdateCoverImage uploads the new cover image and swaps the stored
// reference.
func (s *ProfileService) UpdateCoverImage(ctx context.Context, userID, localPath string) (*model.PublicUser, error) {
	return s.updateImage(ctx, userID, localPath, "coverImage", s.users.UpdateCoverImage)
}

func (s *ProfileService) updateImage(
	ctx context.Context,
	userID, localPath, field string,
	apply func(ctx context.Context, id, url string) (*model.PublicUser, error),
) (*model.PublicUser, error) {
	if localPath == "" {
		return nil, apperror.ValidationFailed(field, field+" file is required")
	}

	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	result, err := s.uploader.Upload(uploadCtx, localPath)
	if err != nil {
		return nil, err
	}

	user, err := apply(ctx, userID, result.URL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("profile image updated",
		slog.String("userID", userID),
		slog.String("field", field),
	)
	return user, nil
}

// Channel returns the aggregated channel profile for username as seen by
// requesterID. requesterID is empty for anonymous viewers, whose
// IsSubscribed is always false.
func (s *ProfileService) Channel(ctx context.Context, username, requesterID string) (*model.ChannelProfile, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	return s.profiles.ChannelProfile(ctx, username, requesterID)
}

// WatchHistory returns the requesting user's resolved watch history in
// stored order. An empty history is an empty slice, not an error.
func (s *ProfileService) WatchHistory(ctx context.Context, userID string) ([]model.WatchHistoryEntry, error) {
	return s.profiles.WatchHistory(ctx, userID)
}
