package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"os"
	"strings"
	"time"
)

// Principal is the authenticated external identity presented by the identity
// provider: an opaque user id plus the account email. The authentication
// protocol itself is out of scope; this package only carries the principal
// across requests in a signed session cookie.
type Principal struct {
	AuthUserID string
	Email      string
}

// DemoAuthUserID is the reserved guest principal: it short-circuits all
// persistence and resolves to the fixed demo business.
const DemoAuthUserID = "demo-user"

// IsDemo reports whether p is the reserved demo/guest sentinel.
func (p Principal) IsDemo() bool { return p.AuthUserID == DemoAuthUserID }

type ctxKey string

const (
	sessionCookieName = "session"
	principalCtxKey   = ctxKey("principal")
)

// PrincipalVerifier is an optional callback to validate that a session's
// principal is still allowed. Set it during app bootstrap via SetVerifier.
// If nil, no extra verification is performed.
type PrincipalVerifier func(ctx context.Context, p Principal) bool

var verifier PrincipalVerifier

// SetVerifier configures the global verifier used by RequireAuth.
func SetVerifier(v PrincipalVerifier) { verifier = v }

// Secret returns SESSION_SECRET or default dev value.
func Secret() string {
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return s
	}
	return "devsessionsecret"
}

func sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(Secret()))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// CreateSession sets a signed cookie carrying the principal.
func CreateSession(w http.ResponseWriter, p Principal) {
	uid := base64.RawURLEncoding.EncodeToString([]byte(p.AuthUserID))
	email := base64.RawURLEncoding.EncodeToString([]byte(p.Email))
	payload := uid + "." + email
	value := payload + "." + sign(payload)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(14 * 24 * time.Hour),
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// ParseSession validates the cookie and returns the principal.
func ParseSession(r *http.Request) (Principal, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return Principal{}, false
	}
	parts := strings.Split(c.Value, ".")
	if len(parts) != 3 {
		return Principal{}, false
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(sign(payload))) {
		return Principal{}, false
	}
	uid, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || len(uid) == 0 {
		return Principal{}, false
	}
	email, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Principal{}, false
	}
	return Principal{AuthUserID: string(uid), Email: string(email)}, true
}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext extracts the principal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	v := ctx.Value(principalCtxKey)
	if v == nil {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// Middleware attaches the principal to the request context if present.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := ParseSession(r); ok {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests without a valid principal.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		if verifier != nil && !verifier(r.Context(), p) {
			// Session refers to a revoked principal: clear and reject.
			ClearSession(w)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
