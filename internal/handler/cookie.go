package handler

import (
	"net/http"
	"time"

	"github.com/sakif/streamhub/internal/auth"
)

// setAuthCookies stores the issued token pair as HttpOnly cookies. The
// cookie lifetimes track the token TTLs so a stale cookie never outlives
// the token inside it.
func setAuthCookies(w http.ResponseWriter, accessToken, refreshToken string, accessTTL, refreshTTL time.Duration) {
	http.SetCookie(w, authCookie(auth.AccessTokenCookie, accessToken, int(accessTTL.Seconds())))
	http.SetCookie(w, authCookie(auth.RefreshTokenCookie, refreshToken, int(refreshTTL.Seconds())))
}

// clearAuthCookies tells the browser to drop both token cookies.
func clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, authCookie(auth.AccessTokenCookie, "", -1))
	http.SetCookie(w, authCookie(auth.RefreshTokenCookie, "", -1))
}

func authCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
