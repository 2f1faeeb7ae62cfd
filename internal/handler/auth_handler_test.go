package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/securecookie"

	"github.com/hitoshi/readshare/internal/auth"
	"github.com/hitoshi/readshare/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	authURLFn          func(nonce, redirectURI string) (string, error)
	loginWithIDTokenFn func(ctx context.Context, idToken, expectedNonce string) (*auth.LoginResult, error)
	loginWithCodeFn    func(ctx context.Context, code, redirectURI string) (*auth.LoginResult, error)
	logoutFn           func(ctx context.Context, token string) error
	logoutAllFn        func(ctx context.Context, userID string) error
}

func (m *mockAuthService) AuthURL(nonce, redirectURI string) (string, error) {
	if m.authURLFn != nil {
		return m.authURLFn(nonce, redirectURI)
	}
	return "https://accounts.google.com/o/oauth2/v2/auth?nonce=" + nonce, nil
}

func (m *mockAuthService) LoginWithIDToken(ctx context.Context, idToken, expectedNonce string) (*auth.LoginResult, error) {
	if m.loginWithIDTokenFn != nil {
		return m.loginWithIDTokenFn(ctx, idToken, expectedNonce)
	}
	return testLoginResult(), nil
}

func (m *mockAuthService) LoginWithCode(ctx context.Context, code, redirectURI string) (*auth.LoginResult, error) {
	if m.loginWithCodeFn != nil {
		return m.loginWithCodeFn(ctx, code, redirectURI)
	}
	return testLoginResult(), nil
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

func (m *mockAuthService) LogoutAll(ctx context.Context, userID string) error {
	if m.logoutAllFn != nil {
		return m.logoutAllFn(ctx, userID)
	}
	return nil
}

func testLoginResult() *auth.LoginResult {
	return &auth.LoginResult{
		User:    testUser,
		Session: &model.Session{Token: "session-token-abc", UserID: testUser.ID},
	}
}

var testCookies = securecookie.New([]byte("0123456789abcdef0123456789abcdef"), nil)

func newTestAuthHandler(svc AuthServiceInterface) *AuthHandler {
	return NewAuthHandler(svc, AuthHandlerConfig{
		Cookies:        testCookies,
		AllowedOrigins: []string{"http://localhost:5173", "https://readshare.example.com/"},
	})
}

func jsonBody(t *testing.T, v any) *strings.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return strings.NewReader(string(b))
}

// --- POST /auth/validate-token ---

func TestAuthHandler_ValidateToken_Success(t *testing.T) {
	var gotToken string
	h := newTestAuthHandler(&mockAuthService{
		loginWithIDTokenFn: func(_ context.Context, idToken, _ string) (*auth.LoginResult, error) {
			gotToken = idToken
			return testLoginResult(), nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/validate-token", jsonBody(t, map[string]string{"idToken": "raw-jwt"}))
	w := httptest.NewRecorder()
	h.ValidateToken(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body=%s)", w.Code, w.Body.String())
	}
	if gotToken != "raw-jwt" {
		t.Errorf("idToken = %q, want raw-jwt", gotToken)
	}

	var resp loginResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	want := loginResponse{
		Success:      true,
		User:         userResponse{ID: "user-123", Email: "reader@example.com", Name: "Reader", Avatar: "https://example.com/a.png"},
		SessionToken: "session-token-abc",
	}
	if resp != want {
		t.Errorf("response = %+v, want %+v", resp, want)
	}
}

func TestAuthHandler_ValidateToken_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing token", `{}`, "ID token is required"},
		{"empty token", `{"idToken":""}`, "ID token is required"},
		{"malformed json", `{"idToken":`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := newTestAuthHandler(&mockAuthService{
				loginWithIDTokenFn: func(context.Context, string, string) (*auth.LoginResult, error) {
					called = true
					return nil, nil
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/auth/validate-token", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.ValidateToken(w, req)

			assertError(t, w, http.StatusBadRequest, tt.wantMsg)
			if called {
				t.Error("service must not be called for invalid requests")
			}
		})
	}
}

func TestAuthHandler_ValidateToken_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid credential", model.ErrInvalidCredential, http.StatusUnauthorized, model.ErrCodeInvalidCredential},
		{"misconfiguration", model.ErrConfiguration, http.StatusInternalServerError, model.ErrCodeConfiguration},
		{"upstream", model.ErrUpstream, http.StatusBadGateway, model.ErrCodeUpstream},
		{"storage", model.ErrPersistence, http.StatusInternalServerError, model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestAuthHandler(&mockAuthService{
				loginWithIDTokenFn: func(context.Context, string, string) (*auth.LoginResult, error) {
					return nil, fmt.Errorf("failed to verify id token: %w", tt.err)
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/auth/validate-token", jsonBody(t, map[string]string{"idToken": "x"}))
			w := httptest.NewRecorder()
			h.ValidateToken(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeError(t, w)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if strings.Contains(body.Error, "failed to verify") {
				t.Errorf("internal error text leaked: %q", body.Error)
			}
		})
	}
}

// --- nonce Cookie ---

func TestAuthHandler_NonceRoundTrip(t *testing.T) {
	var issuedNonce, checkedNonce string
	h := newTestAuthHandler(&mockAuthService{
		authURLFn: func(nonce, _ string) (string, error) {
			issuedNonce = nonce
			return "https://accounts.google.com/o/oauth2/v2/auth", nil
		},
		loginWithIDTokenFn: func(_ context.Context, _ string, expectedNonce string) (*auth.LoginResult, error) {
			checkedNonce = expectedNonce
			return testLoginResult(), nil
		},
	})

	urlReq := httptest.NewRequest(http.MethodGet, "/auth/google/url", nil)
	urlW := httptest.NewRecorder()
	h.GoogleURL(urlW, urlReq)

	if urlW.Code != http.StatusOK {
		t.Fatalf("GoogleURL status = %d", urlW.Code)
	}
	if len(issuedNonce) != 32 {
		t.Errorf("nonce = %q, want 32 hex chars", issuedNonce)
	}

	var nonceCookie *http.Cookie
	for _, c := range urlW.Result().Cookies() {
		if c.Name == nonceCookieName {
			nonceCookie = c
		}
	}
	if nonceCookie == nil {
		t.Fatal("nonce cookie was not set")
	}
	if !nonceCookie.HttpOnly {
		t.Error("nonce cookie must be HttpOnly")
	}
	if nonceCookie.Value == issuedNonce {
		t.Error("nonce cookie must be signed, not the raw nonce")
	}

	loginReq := httptest.NewRequest(http.MethodPost, "/auth/validate-token", jsonBody(t, map[string]string{"idToken": "x"}))
	loginReq.AddCookie(nonceCookie)
	loginW := httptest.NewRecorder()
	h.ValidateToken(loginW, loginReq)

	if loginW.Code != http.StatusOK {
		t.Fatalf("ValidateToken status = %d", loginW.Code)
	}
	if checkedNonce != issuedNonce {
		t.Errorf("expected nonce %q to be checked, got %q", issuedNonce, checkedNonce)
	}
}

func TestAuthHandler_ValidateToken_TamperedNonceCookieIsIgnored(t *testing.T) {
	checkedNonce := "unset"
	h := newTestAuthHandler(&mockAuthService{
		loginWithIDTokenFn: func(_ context.Context, _ string, expectedNonce string) (*auth.LoginResult, error) {
			checkedNonce = expectedNonce
			return testLoginResult(), nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/validate-token", jsonBody(t, map[string]string{"idToken": "x"}))
	req.AddCookie(&http.Cookie{Name: nonceCookieName, Value: "forged"})
	w := httptest.NewRecorder()
	h.ValidateToken(w, req)

	if checkedNonce != "" {
		t.Errorf("expectedNonce = %q, want empty for forged cookie", checkedNonce)
	}
}

// --- GET /auth/google/url ---

func TestAuthHandler_GoogleURL_RedirectFromOrigin(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"allowed origin", "http://localhost:5173", "http://localhost:5173/auth/callback"},
		{"allowed origin configured with slash", "https://readshare.example.com", "https://readshare.example.com/auth/callback"},
		{"unknown origin falls back to config", "https://evil.example.com", ""},
		{"no origin", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotRedirect string
			h := newTestAuthHandler(&mockAuthService{
				authURLFn: func(_, redirectURI string) (string, error) {
					gotRedirect = redirectURI
					return "https://accounts.google.com/o/oauth2/v2/auth", nil
				},
			})

			req := httptest.NewRequest(http.MethodGet, "/auth/google/url", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			h.GoogleURL(w, req)

			if gotRedirect != tt.want {
				t.Errorf("redirectURI = %q, want %q", gotRedirect, tt.want)
			}

			var resp authURLResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp.AuthURL == "" {
				t.Error("authUrl is empty")
			}
		})
	}
}

func TestAuthHandler_GoogleURL_MissingClientID(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{
		authURLFn: func(string, string) (string, error) {
			return "", fmt.Errorf("google client id is not set: %w", model.ErrConfiguration)
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/url", nil)
	w := httptest.NewRecorder()
	h.GoogleURL(w, req)

	assertError(t, w, http.StatusInternalServerError, "")
	for _, c := range w.Result().Cookies() {
		if c.Name == nonceCookieName {
			t.Error("nonce cookie must not be set when the auth url cannot be built")
		}
	}
}

// --- POST /auth/google/callback ---

func TestAuthHandler_GoogleCallback_Success(t *testing.T) {
	var gotCode, gotRedirect string
	h := newTestAuthHandler(&mockAuthService{
		loginWithCodeFn: func(_ context.Context, code, redirectURI string) (*auth.LoginResult, error) {
			gotCode, gotRedirect = code, redirectURI
			return testLoginResult(), nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/google/callback",
		jsonBody(t, map[string]string{"code": "auth-code", "redirectUri": "http://localhost:5173/auth/callback"}))
	w := httptest.NewRecorder()
	h.GoogleCallback(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotCode != "auth-code" || gotRedirect != "http://localhost:5173/auth/callback" {
		t.Errorf("args = %q, %q", gotCode, gotRedirect)
	}
	var resp loginResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !resp.Success || resp.SessionToken != "session-token-abc" {
		t.Errorf("response = %+v", resp)
	}
}

func TestAuthHandler_GoogleCallback_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{"missing code", `{"redirectUri":"x"}`, nil, http.StatusBadRequest},
		{"upstream failure", `{"code":"c"}`, model.ErrUpstream, http.StatusBadGateway},
		{"misconfiguration", `{"code":"c"}`, model.ErrConfiguration, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestAuthHandler(&mockAuthService{
				loginWithCodeFn: func(context.Context, string, string) (*auth.LoginResult, error) {
					return nil, fmt.Errorf("failed to exchange oauth code: %w", tt.serviceErr)
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/auth/google/callback", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.GoogleCallback(w, req)

			assertError(t, w, tt.wantStatus, "")
		})
	}
}

// --- GET /auth/verify/{userId}, GET /auth/me ---

func verifyRequest(userID string, u *model.User) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/verify/"+userID, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("userId", userID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	if u != nil {
		req = withUser(req, u)
	}
	return req
}

func TestAuthHandler_Verify(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	t.Run("同一ユーザーなら200", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Verify(w, verifyRequest("user-123", testUser))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var resp currentUserResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if !resp.Success || resp.User.ID != "user-123" {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("別ユーザーなら403", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Verify(w, verifyRequest("someone-else", testUser))

		assertError(t, w, http.StatusForbidden, "Access denied")
	})

	t.Run("未認証なら401", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Verify(w, verifyRequest("user-123", nil))

		assertError(t, w, http.StatusUnauthorized, "Authentication required")
	})
}

func TestAuthHandler_Me(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/auth/me", nil), testUser)
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp currentUserResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.User.Email != "reader@example.com" || resp.User.Avatar != "https://example.com/a.png" {
		t.Errorf("user = %+v", resp.User)
	}
}

// --- POST /auth/logout ---

func TestAuthHandler_Logout(t *testing.T) {
	for _, header := range []string{"Bearer tok-1", "tok-1"} {
		t.Run(header, func(t *testing.T) {
			var revoked string
			h := newTestAuthHandler(&mockAuthService{
				logoutFn: func(_ context.Context, token string) error {
					revoked = token
					return nil
				},
			})

			req := withUser(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), testUser)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()
			h.Logout(w, req)

			if w.Code != http.StatusNoContent {
				t.Errorf("status = %d, want 204", w.Code)
			}
			if revoked != "tok-1" {
				t.Errorf("revoked = %q, want tok-1", revoked)
			}
		})
	}
}

func TestAuthHandler_Logout_StorageFailure(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{
		logoutFn: func(context.Context, string) error {
			return fmt.Errorf("failed to delete session: %w", model.ErrPersistence)
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	w := httptest.NewRecorder()
	h.Logout(w, req)

	assertError(t, w, http.StatusInternalServerError, "Internal server error")
}

// --- POST /auth/logout-all ---

func TestAuthHandler_LogoutAll(t *testing.T) {
	var revokedFor string
	h := newTestAuthHandler(&mockAuthService{
		logoutAllFn: func(_ context.Context, userID string) error {
			revokedFor = userID
			return nil
		},
	})

	req := withUser(httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil), testUser)
	w := httptest.NewRecorder()
	h.LogoutAll(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if revokedFor != testUser.ID {
		t.Errorf("revoked for = %q, want %q", revokedFor, testUser.ID)
	}
}

func TestAuthHandler_LogoutAll_Errors(t *testing.T) {
	t.Run("未認証", func(t *testing.T) {
		h := newTestAuthHandler(&mockAuthService{})
		w := httptest.NewRecorder()
		h.LogoutAll(w, httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil))

		assertError(t, w, http.StatusUnauthorized, "Authentication required")
	})

	t.Run("削除失敗", func(t *testing.T) {
		h := newTestAuthHandler(&mockAuthService{
			logoutAllFn: func(context.Context, string) error {
				return fmt.Errorf("failed to revoke user sessions: %w", model.ErrPersistence)
			},
		})
		w := httptest.NewRecorder()
		h.LogoutAll(w, withUser(httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil), testUser))

		assertError(t, w, http.StatusInternalServerError, "Internal server error")
	})
}
