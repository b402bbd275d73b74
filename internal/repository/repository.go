// Package repository defines the persistence interfaces the service layer
// programs against. The sqlite subpackage is the production implementation;
// tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/streamhub/internal/model"
)

// ProfileUpdate carries the optional account-detail changes. Nil fields are
// left untouched; at least one must be set.
type ProfileUpdate struct {
	FullName *string
	Email    *string
}

// UserRepository is the credential store. It exclusively owns user records:
// password hashes and stored refresh tokens never leave this interface
// except through GetByID/GetByIdentifier, which the auth flows require for
// verification. Every other read returns sanitized projections.
type UserRepository interface {
	// Create persists a new user. Username and email are normalized to
	// lowercase; a duplicate of either fails with apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error

	// GetByID returns the full user record, apperror.ErrNotFound on miss.
	GetByID(ctx context.Context, id string) (*model.User, error)

	// GetByIdentifier matches identifier case-insensitively against both
	// username and email. apperror.ErrNotFound signals absence.
	GetByIdentifier(ctx context.Context, identifier string) (*model.User, error)

	// SetRefreshToken unconditionally overwrites the stored refresh token.
	// An empty token stores NULL, revoking any outstanding refresh token.
	SetRefreshToken(ctx context.Context, id, token string) error

	// RotateRefreshToken atomically replaces old with new, but only if old
	// is still the stored value. Returns false when the stored value has
	// already moved on (rotated elsewhere or revoked) — the single-use
	// refresh guarantee.
	RotateRefreshToken(ctx context.Context, id, old, new string) (bool, error)

	// UpdatePasswordHash replaces only the password hash.
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// UpdateProfile applies the provided fields and returns the sanitized
	// result. Fails with apperror.ErrValidation when both fields are nil.
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*model.PublicUser, error)

	// UpdateAvatar / UpdateCoverImage replace a single image reference and
	// return the sanitized result.
	UpdateAvatar(ctx context.Context, id, url string) (*model.PublicUser, error)
	UpdateCoverImage(ctx context.Context, id, url string) (*model.PublicUser, error)
}

// ProfileRepository computes the derived relational views. Both queries are
// read-only, single-round-trip aggregations over a consistent snapshot.
type ProfileRepository interface {
	// ChannelProfile joins the subscription edge set twice for the channel
	// matching username (case-insensitive) and evaluates whether
	// requesterID subscribes to it. requesterID may be empty (anonymous).
	// apperror.ErrNotFound when no user matches.
	ChannelProfile(ctx context.Context, username, requesterID string) (*model.ChannelProfile, error)

	// WatchHistory resolves the user's ordered video-id sequence to full
	// video records with a one-level owner projection. Preserves stored
	// order; returns an empty slice, never an error, for empty history.
	WatchHistory(ctx context.Context, userID string) ([]model.WatchHistoryEntry, error)
}

// FixtureRepository is the write surface of the collections this core treats
// as aggregation input. The subscription and video-view pipelines own these
// writes in production; here they seed aggregation tests and local data.
type FixtureRepository interface {
	CreateSubscription(ctx context.Context, subscriberID, channelID string) error
	CreateVideo(ctx context.Context, video *model.Video) error
	AppendWatchHistory(ctx context.Context, userID, videoID string) error
}
