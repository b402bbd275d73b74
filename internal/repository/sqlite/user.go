package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/streamhub/internal/apperror"
	"github.com/sakif/streamhub/internal/model"
	"github.com/sakif/streamhub/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// publicColumns is the only column set read-for-output paths may select.
// password_hash and refresh_token are deliberately absent.
const publicColumns = `id, username, email, full_name, avatar_url, cover_image_url, created_at, updated_at`

// Create persists a new user. Username and email are normalized to
// lowercase here so every later lookup is plain equality.
//
// Uniqueness is pre-checked to produce a clean conflict message; the UNIQUE
// constraints remain the backstop against a concurrent insert racing the
// check.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = ? OR email = ?)`,
		user.Username, user.Email,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("sqlite: checking user uniqueness: %w", err)
	}
	if exists {
		return apperror.Conflict("username or email already exists")
	}

	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, full_name, password_hash, avatar_url, cover_image_url, refresh_token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.AvatarURL,
		user.CoverImageURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("username or email already exists")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Username, err)
	}

	return nil
}

// GetByID retrieves the full user record, including credential fields.
// Only the auth flows and the session gate call this.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `id = ?`, id)
}

// GetByIdentifier matches identifier case-insensitively against username and
// email. Columns are stored lowercase, so lowering the input suffices.
func (db *DB) GetByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	return db.getUser(ctx, `username = ? OR email = ?`, identifier, identifier)
}

func (db *DB) getUser(ctx context.Context, where string, args ...any) (*model.User, error) {
	var (
		u       model.User
		refresh sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, full_name, password_hash, avatar_url, cover_image_url, refresh_token, created_at, updated_at
		 FROM users WHERE `+where,
		args...,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.AvatarURL,
		&u.CoverImageURL,
		&refresh,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(args[0]))
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}

	u.RefreshToken = refresh.String
	return &u, nil
}

// SetRefreshToken unconditionally overwrites the stored refresh token.
// An empty token stores NULL: this is the logout path, and it makes any
// outstanding refresh token permanently unusable.
func (db *DB) SetRefreshToken(ctx context.Context, id, token string) error {
	stored := sql.NullString{String: token, Valid: token != ""}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ?`,
		stored, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting refresh token for user %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// RotateRefreshToken is the single-use rotation step: the swap only happens
// if old is still the stored value. Concurrent refreshes with the same token
// race on this statement and exactly one wins; the loser sees false.
func (db *DB) RotateRefreshToken(ctx context.Context, id, old, new string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ? AND refresh_token = ?`,
		new, time.Now().UTC(), id, old,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: rotating refresh token for user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: rotating refresh token for user %s: %w", id, err)
	}
	return n == 1, nil
}

// UpdatePasswordHash replaces only the password hash. The rest of the record
// is intentionally untouched.
func (db *DB) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for user %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// UpdateProfile applies the provided account-detail fields. At least one
// must be set; a changed email keeps the lowercase and uniqueness contracts.
func (db *DB) UpdateProfile(ctx context.Context, id string, update repository.ProfileUpdate) (*model.PublicUser, error) {
	if update.FullName == nil && update.Email == nil {
		return nil, apperror.ValidationFailed("", "fullName or email is required")
	}

	fullName := sql.NullString{}
	if update.FullName != nil {
		fullName = sql.NullString{String: strings.TrimSpace(*update.FullName), Valid: true}
	}
	email := sql.NullString{}
	if update.Email != nil {
		email = sql.NullString{String: strings.ToLower(strings.TrimSpace(*update.Email)), Valid: true}
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET
			full_name = COALESCE(?, full_name),
			email = COALESCE(?, email),
			updated_at = ?
		 WHERE id = ?`,
		fullName, email, time.Now().UTC(), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("email already exists")
		}
		return nil, fmt.Errorf("sqlite: updating profile for user %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperror.NotFound("user", id)
	}

	return db.getPublicByID(ctx, id)
}

// UpdateAvatar replaces the avatar reference.
func (db *DB) UpdateAvatar(ctx context.Context, id, url string) (*model.PublicUser, error) {
	return db.updateImage(ctx, id, "avatar_url", url)
}

// UpdateCoverImage replaces the cover image reference.
func (db *DB) UpdateCoverImage(ctx context.Context, id, url string) (*model.PublicUser, error) {
	return db.updateImage(ctx, id, "cover_image_url", url)
}

func (db *DB) updateImage(ctx context.Context, id, column, url string) (*model.PublicUser, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		url, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating %s for user %s: %w", column, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperror.NotFound("user", id)
	}

	return db.getPublicByID(ctx, id)
}

// getPublicByID reads the sanitized projection straight from the store:
// the credential columns are not even selected.
func (db *DB) getPublicByID(ctx context.Context, id string) (*model.PublicUser, error) {
	var u model.PublicUser

	err := db.conn.QueryRowContext(ctx,
		`SELECT `+publicColumns+` FROM users WHERE id = ?`, id,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.AvatarURL,
		&u.CoverImageURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	return &u, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// modernc.org/sqlite surfaces these as plain errors with a stable message
// prefix, so string matching is the available signal.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
