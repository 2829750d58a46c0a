package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestCheckPassword(t *testing.T) {
	hash := mustHashPassword("secret")

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"correct password", "secret", true},
		{"wrong password", "wrong", false},
		{"empty password", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkPassword(hash, tt.password)
			if got != tt.want {
				t.Errorf("checkPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateToken(t *testing.T) {
	token1 := generateToken()
	if token1 == "" {
		t.Fatal("expected non-empty token")
	}

	token2 := generateToken()
	if token1 == token2 {
		t.Error("expected unique tokens")
	}
}

func TestCreateAndGetSession(t *testing.T) {
	blog := setupTestDB(t)

	token, err := createSession(blog.db, 1)
	if err != nil {
		t.Fatalf("createSession() error: %v", err)
	}

	session, err := getSession(blog.db, token)
	if err != nil {
		t.Fatalf("getSession() error: %v", err)
	}
	if session == nil {
		t.Fatal("expected session, got nil")
	}

	if session.Token != token {
		t.Errorf("expected token %q, got %q", token, session.Token)
	}
	if session.UserID != 1 {
		t.Errorf("expected user id 1, got %d", session.UserID)
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Error("expected session to expire in the future")
	}
}

func TestGetSession_Unknown(t *testing.T) {
	blog := setupTestDB(t)

	session, err := getSession(blog.db, "no-such-token")
	if err != nil {
		t.Fatalf("getSession() error: %v", err)
	}
	if session != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestGetSession_Expired(t *testing.T) {
	blog := setupTestDB(t)

	expired := time.Now().Add(-time.Hour)
	_, err := blog.db.Exec(`
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)`, "expired-token", 1, expired)
	if err != nil {
		t.Fatalf("inserting expired session: %v", err)
	}

	session, err := getSession(blog.db, "expired-token")
	if err != nil {
		t.Fatalf("getSession() error: %v", err)
	}
	if session != nil {
		t.Error("expected nil for expired session")
	}
}

func TestDeleteSession(t *testing.T) {
	blog := setupTestDB(t)

	token, err := createSession(blog.db, 1)
	if err != nil {
		t.Fatalf("createSession() error: %v", err)
	}

	if err := deleteSession(blog.db, token); err != nil {
		t.Fatalf("deleteSession() error: %v", err)
	}

	session, _ := getSession(blog.db, token)
	if session != nil {
		t.Error("expected session to be deleted")
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	blog := setupTestDB(t)

	// One live session, one expired
	token, err := createSession(blog.db, 1)
	if err != nil {
		t.Fatalf("createSession() error: %v", err)
	}

	expired := time.Now().Add(-time.Hour)
	_, err = blog.db.Exec(`
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)`, "expired-token", 1, expired)
	if err != nil {
		t.Fatalf("inserting expired session: %v", err)
	}

	if err := cleanupExpiredSessions(blog.db); err != nil {
		t.Fatalf("cleanupExpiredSessions() error: %v", err)
	}

	var count int
	if err := blog.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		t.Fatalf("counting sessions: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 session after cleanup, got %d", count)
	}

	session, _ := getSession(blog.db, token)
	if session == nil {
		t.Error("expected live session to survive cleanup")
	}
}

func TestValidateCSRF(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		form   string
		want   bool
	}{
		{"matching tokens", "token-a", "token-a", true},
		{"mismatched tokens", "token-a", "token-b", false},
		{"missing cookie", "", "token-a", false},
		{"missing form value", "token-a", "", false},
		{"both missing", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			if tt.form != "" {
				form.Set(csrfFieldName, tt.form)
			}
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if err := req.ParseForm(); err != nil {
				t.Fatalf("parsing form: %v", err)
			}

			got := validateCSRF(req)
			if got != tt.want {
				t.Errorf("validateCSRF() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnsureCSRFToken_ReusesExisting(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()

	token := ensureCSRFToken(w, req)
	if token != "existing-token" {
		t.Errorf("expected existing token, got %q", token)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("expected no new cookie when token exists")
	}
}

func TestEnsureCSRFToken_CreatesNew(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	token := ensureCSRFToken(w, req)
	if token == "" {
		t.Fatal("expected token to be created")
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != csrfCookieName || cookies[0].Value != token {
		t.Error("expected CSRF cookie matching the returned token")
	}
}

func TestIsAuthenticated(t *testing.T) {
	blog := setupTestDB(t)

	token, err := createSession(blog.db, 1)
	if err != nil {
		t.Fatalf("createSession() error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	if !blog.isAuthenticated(req) {
		t.Error("expected request with valid session to be authenticated")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if blog.isAuthenticated(req) {
		t.Error("expected request without cookie to be unauthenticated")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "bogus"})
	if blog.isAuthenticated(req) {
		t.Error("expected request with unknown token to be unauthenticated")
	}
}
