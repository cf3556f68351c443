package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/server/models"
)

func (s *Server) sessionCookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) setSessionCookies(w http.ResponseWriter, pair *models.TokenPair) {
	http.SetCookie(w, s.sessionCookie(common.AccessTokenCookieName, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, s.sessionCookie(common.RefreshTokenCookieName, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		c := s.sessionCookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

// accessToken reads the access token from its cookie or from a bearer
// Authorization header.
func accessToken(r *http.Request) string {
	if c, err := r.Cookie(common.AccessTokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
