package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/streamhub/internal/apperror"
	"github.com/sakif/streamhub/internal/auth"
	"github.com/sakif/streamhub/internal/model"
	"github.com/sakif/streamhub/internal/service"
)

// AuthHandler serves the credential endpoints: register, login, logout,
// token refresh and password change.
type AuthHandler struct {
	auth       *service.AuthService
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
}

// NewAuthHandler creates an AuthHandler. The TTLs size the auth cookie
// lifetimes and must match the token service configuration.
func NewAuthHandler(authSvc *service.AuthService, accessTTL, refreshTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:       authSvc,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

type registerRequest struct {
	Username string `validate:"required,min=2,max=32"`
	Email    string `validate:"required,email"`
	FullName string `validate:"required,max=80"`
	Password string `validate:"required,min=4,max=72"`
}

// loginRequest accepts a generic identifier, with username/email fields as
// fallbacks for clients that send them separately.
type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password" validate:"required"`
}

func (r loginRequest) identifier() string {
	for _, v := range []string{r.Identifier, r.Username, r.Email} {
		if v != "" {
			return v
		}
	}
	return ""
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=4,max=72"`
}

// loginResponse carries the sanitized user plus the token pair; the tokens
// are also set as cookies so both browser and API clients are served.
type loginResponse struct {
	User         *model.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// HandleRegister creates a user from a multipart form: text fields plus a
// required avatar file and an optional coverImage file.
//
// HTTP: POST /api/v1/users/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, apperror.ValidationFailed("", "request must be multipart/form-data"))
		return
	}

	req := registerRequest{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		FullName: r.FormValue("fullName"),
		Password: r.FormValue("password"),
	}
	if fields := checkStruct(req); fields != nil {
		writeValidationErrors(w, fields)
		return
	}

	avatarPath, err := saveUpload(r, "avatar")
	if err != nil {
		writeError(w, err)
		return
	}
	defer removeTemp(avatarPath)

	if avatarPath == "" {
		writeError(w, apperror.ValidationFailed("avatar", "avatar file is required"))
		return
	}

	coverPath, err := saveUpload(r, "coverImage")
	if err != nil {
		removeTemp(coverPath)
		writeError(w, err)
		return
	}
	defer removeTemp(coverPath)

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username:       req.Username,
		Email:          req.Email,
		FullName:       req.FullName,
		Password:       req.Password,
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusCreated, user, "user registered successfully")
}

// HandleLogin verifies credentials, issues a token pair and sets both auth
// cookies.
//
// HTTP: POST /api/v1/users/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid request body"))
		return
	}
	if fields := checkStruct(req); fields != nil {
		writeValidationErrors(w, fields)
		return
	}
	identifier := req.identifier()
	if identifier == "" {
		writeValidationErrors(w, []fieldError{{Field: "identifier", Message: "identifier is required"}})
		return
	}

	result, err := h.auth.Login(r.Context(), identifier, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setAuthCookies(w, result.AccessToken, result.RefreshToken, h.accessTTL, h.refreshTTL)
	writeData(w, http.StatusOK, loginResponse{
		User:         result.User,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}, "user logged in successfully")
}

// HandleLogout revokes the stored refresh token and expires both cookies.
//
// HTTP: POST /api/v1/users/logout (protected)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}

	if err := h.auth.Logout(r.Context(), user.ID); err != nil {
		writeError(w, err)
		return
	}

	clearAuthCookies(w)
	writeData(w, http.StatusOK, struct{}{}, "user logged out")
}

// HandleRefresh rotates the refresh token. The presented token comes from
// the refreshToken cookie or, for non-browser clients, a JSON body field.
//
// HTTP: POST /api/v1/users/refresh-token
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	presented := ""
	if cookie, err := r.Cookie(auth.RefreshTokenCookie); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			presented = body.RefreshToken
		}
	}
	if presented == "" {
		writeError(w, apperror.Unauthenticated("refresh token is required"))
		return
	}

	result, err := h.auth.Refresh(r.Context(), presented)
	if err != nil {
		writeError(w, err)
		return
	}

	setAuthCookies(w, result.AccessToken, result.RefreshToken, h.accessTTL, h.refreshTTL)
	writeData(w, http.StatusOK, tokenResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}, "access token refreshed")
}

// HandleChangePassword verifies the old password and stores the new hash.
//
// HTTP: POST /api/v1/users/change-password (protected)
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid request body"))
		return
	}
	if fields := checkStruct(req); fields != nil {
		writeValidationErrors(w, fields)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, struct{}{}, "password changed successfully")
}

// HandleCurrentUser returns the authenticated user's sanitized profile.
//
// HTTP: GET /api/v1/users/current-user (protected)
func (h *AuthHandler) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}

	writeData(w, http.StatusOK, user, "current user fetched successfully")
}
