package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diewo77/proposals-app/auth"
	"github.com/diewo77/proposals-app/internal/services"
)

func TestSessionCreateSetsSignedCookie(t *testing.T) {
	h := NewSessionHandler(services.NewTenantCache())
	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(`{"auth_user_id":"u-1","email":"u1@test"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one session cookie, got %d", len(cookies))
	}
	verify := httptest.NewRequest(http.MethodGet, "/", nil)
	verify.AddCookie(cookies[0])
	p, ok := auth.ParseSession(verify)
	if !ok || p.AuthUserID != "u-1" || p.Email != "u1@test" {
		t.Fatalf("cookie did not round-trip: ok=%v p=%+v", ok, p)
	}
}

func TestSessionCreateRequiresAuthUserID(t *testing.T) {
	h := NewSessionHandler(services.NewTenantCache())
	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(`{"email":"u1@test"}`))
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}

func TestSessionDestroyInvalidatesTenantCache(t *testing.T) {
	cache := services.NewTenantCache()
	cache.Put("u-1", "biz-1")
	h := NewSessionHandler(cache)

	req := httptest.NewRequest(http.MethodPost, "/session/logout", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{AuthUserID: "u-1"}))
	w := httptest.NewRecorder()
	h.Destroy(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if _, ok := cache.Get("u-1"); ok {
		t.Fatalf("sign-out must drop the cached business id")
	}
}
