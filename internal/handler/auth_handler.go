package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/securecookie"

	"github.com/hitoshi/readshare/internal/auth"
	"github.com/hitoshi/readshare/internal/middleware"
	"github.com/hitoshi/readshare/internal/model"
)

const (
	nonceCookieName = "oauth_nonce"
	nonceCookieTTL  = 10 * time.Minute

	// callbackPath はフロントエンドがGoogleからのリダイレクトを受けるパス。
	callbackPath = "/auth/callback"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	AuthURL(nonce, redirectURI string) (string, error)
	LoginWithIDToken(ctx context.Context, idToken, expectedNonce string) (*auth.LoginResult, error)
	LoginWithCode(ctx context.Context, code, redirectURI string) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, userID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// Cookies はnonce Cookieの署名に使う。
	Cookies      *securecookie.SecureCookie
	CookieSecure bool
	// AllowedOrigins に含まれるOriginからのリクエストのみ、
	// Originを元にリダイレクトURIを組み立てる。
	AllowedOrigins []string
}

// AuthHandler はGoogleログインとセッション関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	origins map[string]struct{}
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	origins := make(map[string]struct{}, len(config.AllowedOrigins))
	for _, o := range config.AllowedOrigins {
		origins[strings.TrimSuffix(o, "/")] = struct{}{}
	}
	return &AuthHandler{
		service: service,
		config:  config,
		origins: origins,
	}
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// loginResponse はログイン成功時のAPIレスポンス。
type loginResponse struct {
	Success      bool         `json:"success"`
	User         userResponse `json:"user"`
	SessionToken string       `json:"sessionToken"`
}

// currentUserResponse はセッション確認時のAPIレスポンス。
type currentUserResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}

type authURLResponse struct {
	AuthURL string `json:"authUrl"`
}

type validateTokenRequest struct {
	IDToken string `json:"idToken"`
}

type callbackRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
}

// ValidateToken はGoogleのIDトークンを検証し、セッションを発行する。
// POST /auth/validate-token
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var req validateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.IDToken == "" {
		writeBadRequest(w, "ID token is required")
		return
	}

	nonce := h.readNonce(r)
	h.clearNonce(w)

	result, err := h.service.LoginWithIDToken(r.Context(), req.IDToken, nonce)
	if err != nil {
		slog.Warn("id token login failed", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLoginResponse(result))
}

// GoogleURL はnonceを埋め込んだGoogleの認可URLを返す。
// nonceは署名付きCookieに保存し、ValidateTokenで照合する。
// GET /auth/google/url
func (h *AuthHandler) GoogleURL(w http.ResponseWriter, r *http.Request) {
	nonce, err := generateNonce()
	if err != nil {
		slog.Error("failed to generate oauth nonce", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	authURL, err := h.service.AuthURL(nonce, h.redirectURIFor(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.writeNonce(w, nonce); err != nil {
		slog.Error("failed to write nonce cookie", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, authURLResponse{AuthURL: authURL})
}

// GoogleCallback は認可コードを交換し、セッションを発行する。
// POST /auth/google/callback
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	if req.Code == "" {
		writeBadRequest(w, "Authorization code is required")
		return
	}

	result, err := h.service.LoginWithCode(r.Context(), req.Code, req.RedirectURI)
	if err != nil {
		slog.Warn("oauth code login failed", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLoginResponse(result))
}

// Verify はセッションのユーザーがURLのユーザーIDと一致することを確認する。
// GET /auth/verify/{userId}
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	if user.ID != chi.URLParam(r, "userId") {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError("Access denied"))
		return
	}

	writeJSON(w, http.StatusOK, currentUserResponse{Success: true, User: toUserResponse(user)})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, currentUserResponse{Success: true, User: toUserResponse(user)})
}

// Logout は呼び出し元のセッションを失効させる。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.ParseAuthorizationHeader(r.Header.Get("Authorization"))
	if err := h.service.Logout(r.Context(), token); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll は呼び出し元ユーザーの全セッションを失効させる。
// POST /auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.service.LogoutAll(r.Context(), user.ID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// redirectURIFor は許可されたOriginからのリクエストであれば
// そのOriginのコールバックURLを返す。それ以外は空文字列（設定値を使用）。
func (h *AuthHandler) redirectURIFor(r *http.Request) string {
	origin := strings.TrimSuffix(r.Header.Get("Origin"), "/")
	if origin == "" {
		return ""
	}
	if _, ok := h.origins[origin]; !ok {
		return ""
	}
	return origin + callbackPath
}

func (h *AuthHandler) writeNonce(w http.ResponseWriter, nonce string) error {
	if h.config.Cookies == nil {
		return nil
	}
	encoded, err := h.config.Cookies.Encode(nonceCookieName, nonce)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     nonceCookieName,
		Value:    encoded,
		Path:     "/auth",
		MaxAge:   int(nonceCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// readNonce は署名付きCookieからnonceを取り出す。
// Cookieが無い・改ざんされている場合は空文字列を返し、nonceの照合を行わない。
func (h *AuthHandler) readNonce(r *http.Request) string {
	if h.config.Cookies == nil {
		return ""
	}
	c, err := r.Cookie(nonceCookieName)
	if err != nil {
		return ""
	}
	var nonce string
	if err := h.config.Cookies.Decode(nonceCookieName, c.Value, &nonce); err != nil {
		slog.Warn("invalid nonce cookie", slog.String("error", err.Error()))
		return ""
	}
	return nonce
}

func (h *AuthHandler) clearNonce(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     nonceCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Avatar: u.AvatarURL,
	}
}

func toLoginResponse(result *auth.LoginResult) loginResponse {
	return loginResponse{
		Success:      true,
		User:         toUserResponse(result.User),
		SessionToken: result.Session.Token,
	}
}

// generateNonce はリプレイ対策用のランダムなnonceを生成する。
func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
