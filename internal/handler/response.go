// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/readshare/internal/middleware"
	"github.com/hitoshi/readshare/internal/model"
)

// writeJSON はstatusCodeとともにvをJSONで書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeBadRequest は400の検証エラーを書き込む。
func writeBadRequest(w http.ResponseWriter, message string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(message))
}

// writeInvalidBody はリクエストボディの解析失敗を書き込む。
func writeInvalidBody(w http.ResponseWriter) {
	writeBadRequest(w, "Invalid request body")
}

// requireUser はセッションミドルウェアが注入したユーザーを返す。
// 取得できない場合は401を書き込み、falseを返す。
func requireUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError("Authentication required"))
		return nil, false
	}
	return user, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIErrorを含む場合はそのメッセージを返し、含まない場合は分類に応じた定型メッセージを返す。
// 内部エラーの詳細はログのみに記録する。
func handleServiceError(w http.ResponseWriter, err error) {
	statusCode := statusForError(err)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		apiErr = apiErrorFor(err)
	}

	if statusCode >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.Int("status", statusCode),
			slog.String("error", err.Error()),
		)
	}

	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// statusForError はエラー分類をHTTPステータスコードにマッピングする。
func statusForError(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidCredential), errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUpstream):
		return http.StatusBadGateway
	default:
		// ErrConfiguration, ErrPersistence, 未分類
		return http.StatusInternalServerError
	}
}

// apiErrorFor はAPIErrorを含まないエラーに対応するレスポンスを生成する。
func apiErrorFor(err error) *model.APIError {
	switch {
	case errors.Is(err, model.ErrInvalidCredential):
		return model.NewInvalidCredentialError()
	case errors.Is(err, model.ErrUpstream):
		return model.NewUpstreamError()
	case errors.Is(err, model.ErrConfiguration):
		return model.NewConfigurationError("Server authentication is not configured")
	case errors.Is(err, model.ErrUnauthorized):
		return model.NewUnauthorizedError(model.AuthMsgFailed)
	case errors.Is(err, model.ErrForbidden):
		return model.NewForbiddenError("Access denied")
	case errors.Is(err, model.ErrNotFound):
		return model.NewNotFoundError("Resource not found")
	case errors.Is(err, model.ErrValidation):
		return model.NewValidationError("Invalid request")
	default:
		return model.NewInternalError()
	}
}
