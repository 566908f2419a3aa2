package identity

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	h := Middleware(true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddlewareIssuesAnonymousCookie(t *testing.T) {
	rec, userID := serve(t, httptest.NewRequest(http.MethodGet, "/", nil))

	if !isValidAnonID(userID) {
		t.Fatalf("expected anonymous id, got %q", userID)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AnonCookieName || cookies[0].Value != userID {
		t.Fatalf("expected anon cookie for %q, got %+v", userID, cookies)
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	id, err := generateAnonID()
	if err != nil {
		t.Fatalf("generateAnonID failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})

	_, userID := serve(t, req)
	if userID != id {
		t.Fatalf("expected %q, got %q", id, userID)
	}
}

func TestMiddlewareReplacesForgedCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "anon_not-hex"})

	_, userID := serve(t, req)
	if userID == "anon_not-hex" || !strings.HasPrefix(userID, "anon_") {
		t.Fatalf("expected a fresh anonymous id, got %q", userID)
	}
}

func TestMiddlewarePrefersUserHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeaderName, "user-42")

	rec, userID := serve(t, req)
	if userID != "user-42" {
		t.Fatalf("expected header user, got %q", userID)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("expected no anonymous cookie when header identity is present")
	}
}

func TestMiddlewareRejectsMalformedUserHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeaderName, "bad user\nid")

	rec, userID := serve(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if userID != "" {
		t.Fatalf("handler should not run, saw %q", userID)
	}
}
