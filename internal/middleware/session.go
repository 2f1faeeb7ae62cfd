// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/readshare/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// Authenticator はAuthorizationヘッダーの値からセッションを検証する。
// auth.SessionManagerが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, authorizationHeader string) (*model.User, *model.AuthFailure)
}

// NewSessionMiddleware はAuthorizationヘッダーのセッショントークンを検証するミドルウェアを返す。
// "Bearer <token>" と生のトークンの両方を受け付ける。
// 認証済みユーザーをリクエストコンテキストに注入する。
// 検証に失敗した場合は失敗理由のメッセージとともに401を返す。
func NewSessionMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, failure := authenticator.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if failure != nil {
				WriteErrorResponse(w, failure.StatusCode, model.NewUnauthorizedError(failure.Message))
				return
			}

			ctx := ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, err := UserFromContext(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	recordUserID(ctx, user.ID)
	return context.WithValue(ctx, userContextKey, user)
}
