// Package service contains the business logic layer: it validates, enforces
// the credential/session invariants, and orchestrates the repositories, the
// token service, and the media store. Handlers stay HTTP-only; repositories
// stay storage-only.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/streamhub/internal/apperror"
	"github.com/sakif/streamhub/internal/auth"
	"github.com/sakif/streamhub/internal/model"
	"github.com/sakif/streamhub/internal/repository"
	"github.com/sakif/streamhub/internal/storage"
)

// AuthService implements the register/login/logout/refresh/change-password
// flows. Each call is single-shot: no flow state survives the request.
type AuthService struct {
	users         repository.UserRepository
	tokens        *auth.TokenService
	passwords     *auth.PasswordService
	uploader      storage.Uploader
	uploadTimeout time.Duration
	logger        *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	uploader storage.Uploader,
	uploadTimeout time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:         users,
		tokens:        tokens,
		passwords:     passwords,
		uploader:      uploader,
		uploadTimeout: uploadTimeout,
		logger:        logger,
	}
}

// RegisterInput carries a validated registration request. The image paths
// point at local temporary files written by the upload handler.
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string

	AvatarPath     string // required
	CoverImagePath string // optional
}

// AuthResult bundles the sanitized user and the issued token pair so the
// handler can set cookies and respond in one step.
type AuthResult struct {
	User         *model.PublicUser
	AccessToken  string
	RefreshToken string
}

// Register implements the registration flow: validate → uniqueness → avatar
// upload → create. The ordering matters: the user row is only written after
// the avatar upload succeeded, so no user ever exists without a valid
// avatar reference, and nothing is uploaded for a request that was going to
// conflict anyway.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.PublicUser, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	switch {
	case in.Username == "":
		return nil, apperror.ValidationFailed("username", "username is required")
	case in.Email == "":
		return nil, apperror.ValidationFailed("email", "email is required")
	case in.FullName == "":
		return nil, apperror.ValidationFailed("fullName", "fullName is required")
	case strings.TrimSpace(in.Password) == "":
		return nil, apperror.ValidationFailed("password", "password is required")
	case in.AvatarPath == "":
		return nil, apperror.ValidationFailed("avatar", "avatar file is required")
	}

	for _, identifier := range []string{in.Username, in.Email} {
		if _, err := s.users.GetByIdentifier(ctx, identifier); err == nil {
			return nil, apperror.Conflict("username or email already exists")
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
	}

	avatar, err := s.upload(ctx, in.AvatarPath)
	if err != nil {
		return nil, err
	}

	// The cover image is optional, and so is its upload: a failure here
	// degrades to "no cover image" rather than aborting the registration.
	var coverURL string
	if in.CoverImagePath != "" {
		cover, err := s.upload(ctx, in.CoverImagePath)
		if err != nil {
			s.logger.Warn("cover image upload failed, continuing without",
				slog.String("username", in.Username),
				slog.String("error", err.Error()),
			)
		} else {
			coverURL = cover.URL
		}
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		PasswordHash:  hash,
		AvatarURL:     avatar.URL,
		CoverImageURL: coverURL,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return user.Public(), nil
}

// Login resolves the identifier (username or email, case-insensitive),
// verifies the password, and issues a fresh token pair.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, apperror.ValidationFailed("identifier", "username or email is required")
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, err
	}

	result, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return result, nil
}

// Logout clears the stored refresh token, making any outstanding refresh
// token permanently unusable even before it expires. The access token stays
// technically valid until its short TTL runs out.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshToken(ctx, userID, ""); err != nil {
		return err
	}

	s.logger.Info("user logged out", slog.String("userID", userID))
	return nil
}

// Refresh redeems a refresh token for a new pair. The presented token must
// carry a valid signature AND be the currently stored value; the swap to
// the new token is an atomic compare-and-swap, so concurrent refreshes with
// the same token yield exactly one winner and the old token is spent either
// way.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*AuthResult, error) {
	if presented == "" {
		return nil, apperror.Unauthenticated("refresh token required")
	}

	userID, err := s.tokens.VerifyRefresh(presented)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("invalid refresh token")
		}
		return nil, err
	}

	access, err := s.tokens.GenerateAccessToken(user.ID, user.Username, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}

	swapped, err := s.users.RotateRefreshToken(ctx, user.ID, presented, refresh)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// Already rotated elsewhere or revoked by logout. Terminal for
		// this token; the client must log in again.
		return nil, apperror.Unauthenticated("refresh token is expired or already used")
	}

	s.logger.Info("session refreshed", slog.String("userID", user.ID))

	return &AuthResult{
		User:         user.Public(),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// ChangePassword verifies the old password and stores the new hash. Only
// the hash is written; unrelated fields are deliberately not revalidated.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return apperror.ValidationFailed("newPassword", "new password is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.passwords.Verify(user.PasswordHash, oldPassword); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", slog.String("userID", userID))
	return nil
}

// issueTokenPair generates both tokens and persists the refresh token on
// the user record in the same logical operation. If the persist fails the
// pair is not returned — an issued-but-unpersisted refresh token would be
// unredeemable.
func (s *AuthService) issueTokenPair(ctx context.Context, user *model.User) (*AuthResult, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Username, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, refresh); err != nil {
		return nil, err
	}

	return &AuthResult{
		User:         user.Public(),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// upload runs a media upload with the configured timeout. The upload is a
// blocking external call on the request path; the deadline keeps a slow
// media backend from pinning request goroutines.
func (s *AuthService) upload(ctx context.Context, localPath string) (*storage.UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()
	return s.uploader.Upload(ctx, localPath)
}
