// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// 認証・永続化のエラー分類。
// サービス層は fmt.Errorf("...: %w", ErrXxx) でラップして返し、
// ハンドラー境界で errors.Is によりHTTPステータスへ変換する。
var (
	// ErrConfiguration は必須設定（クライアントIDなど）が未設定であることを示す。500。
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidCredential はIDトークンが不正・期限切れ・改ざんされていることを示す。401。
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrUpstream はIdPへの通信やAPI呼び出しが失敗したことを示す。502。
	ErrUpstream = errors.New("upstream error")
	// ErrUnauthorized はセッションが無い・無効・期限切れであることを示す。401。
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden は認証済みだがリソースの変更権限が無いことを示す。403。
	ErrForbidden = errors.New("forbidden")
	// ErrPersistence はストレージ操作の失敗を示す。500。
	ErrPersistence = errors.New("persistence error")
	// ErrNotFound は対象リソースが存在しないことを示す。404。
	ErrNotFound = errors.New("not found")
	// ErrValidation はリクエスト内容が不正であることを示す。400。
	ErrValidation = errors.New("validation error")
	// ErrEmailConflict はemailの一意制約違反を示す。UPSERTの競合検出に使う。
	ErrEmailConflict = errors.New("email already exists")
)

// APIError は統一エラーフォーマットを表す。
// Messageはクライアントに返す安定したメッセージで、内部エラーの詳細は含めない。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, library, system
	Action   string // ユーザー向け対処方法
	cause    error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は分類用のセンチネルエラーを返す。
func (e *APIError) Unwrap() error {
	return e.cause
}

// 定義済みエラーコード
const (
	ErrCodeConfiguration     = "CONFIGURATION_ERROR"
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrCodeUpstream          = "UPSTREAM_ERROR"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
)

// NewValidationError はリクエスト検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
		Action:   "Check the request parameters and try again.",
		cause:    ErrValidation,
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  message,
		Category: "library",
		Action:   "Check the resource ID.",
		cause:    ErrNotFound,
	}
}

// NewForbiddenError は権限エラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "auth",
		Action:   "Only the owner can modify this resource.",
		cause:    ErrForbidden,
	}
}

// NewUnauthorizedError はセッション認証エラーを生成する。
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  message,
		Category: "auth",
		Action:   "Sign in again.",
		cause:    ErrUnauthorized,
	}
}

// NewInvalidCredentialError はIDトークン検証エラーを生成する。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "Invalid token or authentication failed",
		Category: "auth",
		Action:   "Sign in with Google again.",
		cause:    ErrInvalidCredential,
	}
}

// NewUpstreamError はIdP通信エラーを生成する。
func NewUpstreamError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstream,
		Message:  "Authentication provider is unavailable",
		Category: "auth",
		Action:   "Retry the sign-in after a while.",
		cause:    ErrUpstream,
	}
}

// NewConfigurationError は設定不備エラーを生成する。
func NewConfigurationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeConfiguration,
		Message:  message,
		Category: "system",
		Action:   "Contact the administrator.",
		cause:    ErrConfiguration,
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "Please try again later.",
		cause:    ErrPersistence,
	}
}

// セッション検証の失敗メッセージ。クライアントにそのまま返す。
const (
	AuthMsgHeaderMissing = "Authorization header missing"
	AuthMsgTokenMissing  = "Token missing"
	AuthMsgInvalidToken  = "Invalid session token"
	AuthMsgExpired       = "Session expired"
	AuthMsgFailed        = "Authentication failed"
)

// AuthFailure はセッション検証の失敗を表す。
// 境界を越えて例外的に伝播させず、値として返す。
type AuthFailure struct {
	Message    string
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (f *AuthFailure) Error() string {
	return f.Message
}

// Unwrap は ErrUnauthorized を返す。
func (f *AuthFailure) Unwrap() error {
	return ErrUnauthorized
}
