package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/readshare/internal/middleware"
	"github.com/hitoshi/readshare/internal/model"
)

// テスト共通のユーザー。
var testUser = &model.User{
	ID:        "user-123",
	Email:     "reader@example.com",
	Name:      "Reader",
	AvatarURL: "https://example.com/a.png",
}

// withUser はセッションミドルウェアを通過した状態のリクエストを返す。
func withUser(r *http.Request, u *model.User) *http.Request {
	return r.WithContext(middleware.ContextWithUser(r.Context(), u))
}

// decodeError はエラーレスポンスのボディを解析する。
func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v (body=%q)", err, w.Body.String())
	}
	return body
}

// assertError はステータスコードとエラーメッセージを検証する。
func assertError(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantMessage string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d (body=%s)", w.Code, wantStatus, w.Body.String())
	}
	body := decodeError(t, w)
	if wantMessage != "" && body.Error != wantMessage {
		t.Errorf("error = %q, want %q", body.Error, wantMessage)
	}
}

// serveRoute はpatternにhを登録したchiルーター経由でreqを処理する。
// URLパラメータを含むハンドラーのテストに使う。
func serveRoute(method, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
