// Package auth reads the signed session cookie issued by the sign-in service
// and puts the account id on the request context. Sign-in itself lives
// elsewhere; this package only verifies and, for tooling and tests, issues
// cookies.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/billflow/internal/httpx"
)

type ctxKey string

const (
	sessionCookieName = "session"
	accountIDCtxKey   = ctxKey("accountID")
	sessionTTL        = 14 * 24 * time.Hour
)

// AccountVerifier is an optional callback to validate that a session's account still exists.
type AccountVerifier func(ctx context.Context, accountID string) bool

// Sessions signs and verifies session cookies with an HMAC secret.
type Sessions struct {
	secret   []byte
	verifier AccountVerifier
}

// NewSessions creates a verifier for cookies signed with secret.
func NewSessions(secret string, verifier AccountVerifier) *Sessions {
	return &Sessions{secret: []byte(secret), verifier: verifier}
}

func (s *Sessions) sign(accountID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(accountID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Cookie builds the signed session cookie for accountID.
func (s *Sessions) Cookie(accountID string) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    accountID + "." + s.sign(accountID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionTTL),
	}
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// ParseSession validates the cookie and returns the account id.
func (s *Sessions) ParseSession(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	// account ids are UUIDs and never contain a dot
	accountID, sig, ok := strings.Cut(c.Value, ".")
	if !ok || accountID == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(accountID))) {
		return "", false
	}
	return accountID, true
}

// WithAccountID stores the account id in context.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDCtxKey, accountID)
}

// AccountIDFromContext extracts the account id.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDCtxKey).(string)
	return id, ok && id != ""
}

// Middleware attaches the account id to the request context if present.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := s.ParseSession(r); ok {
			r = r.WithContext(WithAccountID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth returns 401 JSON unless the request carries a valid account.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := AccountIDFromContext(r.Context())
		if !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if s.verifier != nil && !s.verifier(r.Context(), id) {
			// Session refers to a removed account: clear and treat as unauthorized.
			ClearSession(w)
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
