package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/streamhub/internal/apperror"
	"github.com/sakif/streamhub/internal/model"
)

// AccessTokenCookie is the cookie carrying the access token.
const AccessTokenCookie = "accessToken"

// RefreshTokenCookie is the cookie carrying the refresh token.
const RefreshTokenCookie = "refreshToken"

// UserResolver is the slice of the credential store the session gate needs:
// resolving a token subject to a live user record.
type UserResolver interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// contextKey is an unexported type for context keys in this package, so no
// other package can read or shadow the authenticated identity.
type contextKey string

const currentUserKey contextKey = "currentUser"

// RequireAuth is the session gate for protected routes.
//
// Token source precedence is deterministic: the accessToken cookie wins;
// the "Authorization: Bearer" header is the fallback when no cookie is set.
//
// The gate runs to completion before any protected handler: it verifies the
// token and resolves the subject against the credential store, so downstream
// handlers read a sanitized identity from the context and never see the raw
// token. A valid token whose user has since been deleted yields 404, not 401.
func RequireAuth(tokens *TokenService, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveUser(r, tokens, users)
			if err != nil {
				writeGateError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), currentUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves the identity if a valid token is present but never
// blocks the request. Used on public reads (the channel profile) where an
// authenticated viewer sees extra data (isSubscribed) and an anonymous
// viewer still gets the page.
func OptionalAuth(tokens *TokenService, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, err := resolveUser(r, tokens, users); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), currentUserKey, user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentUser retrieves the authenticated user from the request context.
// Returns (nil, false) when the request is anonymous.
func CurrentUser(ctx context.Context) (*model.PublicUser, bool) {
	user, ok := ctx.Value(currentUserKey).(*model.PublicUser)
	return user, ok && user != nil
}

// resolveUser extracts the access token, verifies it, and loads the user.
func resolveUser(r *http.Request, tokens *TokenService, users UserResolver) (*model.PublicUser, error) {
	tokenStr := accessTokenFromRequest(r)
	if tokenStr == "" {
		return nil, apperror.Unauthenticated("access token required")
	}

	userID, err := tokens.VerifyAccess(tokenStr)
	if err != nil {
		return nil, err
	}

	user, err := users.GetByID(r.Context(), userID)
	if err != nil {
		return nil, err
	}

	return user.Public(), nil
}

// accessTokenFromRequest returns the access token from the cookie, falling
// back to the Authorization header. Empty string means no token present.
func accessTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// writeGateError writes the standard error envelope without depending on the
// handler package (which depends on this one).
func writeGateError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	message := "valid authentication required"

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
		if errors.Is(err, apperror.ErrNotFound) {
			status = http.StatusNotFound
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"success": false,
		"message": message,
		"errors":  []string{},
	})
}
