// Package auth はGoogleログイン、セッションの発行と検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/readshare/internal/metrics"
	"github.com/hitoshi/readshare/internal/model"
)

// IDTokenVerifier はIDトークンを検証してプロフィールを返す。
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken, expectedNonce string) (*model.Profile, error)
}

// OAuthProvider は認可URLの生成と認可コードの交換を行う。
type OAuthProvider interface {
	// AuthURL はnonceを埋め込んだ認可URLを生成する。
	AuthURL(nonce, redirectURI string) (string, error)
	// ExchangeCode は認可コードをトークンに交換し、プロフィールを取得する。
	ExchangeCode(ctx context.Context, code, redirectURI string) (*model.Profile, error)
}

// UserUpserter は検証済みプロフィールからユーザーを作成・更新する。
type UserUpserter interface {
	UpsertUser(ctx context.Context, profile *model.Profile) (*model.User, error)
}

// SessionIssuer はセッションの発行と失効を行う。
type SessionIssuer interface {
	IssueSession(ctx context.Context, user *model.User) (*model.Session, error)
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, userID string) error
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	User    *model.User
	Session *model.Session
}

// Service はログインフロー全体（検証→ユーザーUPSERT→セッション発行）を提供する。
type Service struct {
	verifier IDTokenVerifier
	oauth    OAuthProvider
	users    UserUpserter
	sessions SessionIssuer
	metrics  metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	verifier IDTokenVerifier,
	oauth OAuthProvider,
	users UserUpserter,
	sessions SessionIssuer,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		verifier: verifier,
		oauth:    oauth,
		users:    users,
		sessions: sessions,
		metrics:  mc,
	}
}

// AuthURL はGoogleの認可URLを生成する。
func (s *Service) AuthURL(nonce, redirectURI string) (string, error) {
	return s.oauth.AuthURL(nonce, redirectURI)
}

// LoginWithIDToken はGoogleのIDトークンでログインし、セッションを発行する。
// expectedNonceが空でない場合はトークンのnonceと照合する。
func (s *Service) LoginWithIDToken(ctx context.Context, idToken, expectedNonce string) (*LoginResult, error) {
	profile, err := s.verifier.Verify(ctx, idToken, expectedNonce)
	if err != nil {
		s.metrics.RecordLogin("id_token", loginOutcome(err))
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}
	return s.complete(ctx, "id_token", profile)
}

// LoginWithCode は認可コードを交換してログインし、セッションを発行する。
func (s *Service) LoginWithCode(ctx context.Context, code, redirectURI string) (*LoginResult, error) {
	profile, err := s.oauth.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		s.metrics.RecordLogin("code", loginOutcome(err))
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}
	return s.complete(ctx, "code", profile)
}

func (s *Service) complete(ctx context.Context, method string, profile *model.Profile) (*LoginResult, error) {
	user, err := s.users.UpsertUser(ctx, profile)
	if err != nil {
		s.metrics.RecordLogin(method, loginOutcome(err))
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	session, err := s.sessions.IssueSession(ctx, user)
	if err != nil {
		s.metrics.RecordLogin(method, loginOutcome(err))
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.metrics.RecordLogin(method, "success")
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("method", method),
	)
	return &LoginResult{User: user, Session: session}, nil
}

// Logout はセッションを失効させる。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("session token is required: %w", model.ErrValidation)
	}
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return err
	}
	slog.Info("user logged out")
	return nil
}

// LogoutAll はユーザーの全セッションを失効させる。
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required: %w", model.ErrValidation)
	}
	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		return err
	}
	slog.Info("user logged out from all sessions", slog.String("user_id", userID))
	return nil
}

// loginOutcome はメトリクス用にエラーを分類する。
func loginOutcome(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, model.ErrUpstream):
		return "upstream"
	case errors.Is(err, model.ErrConfiguration):
		return "configuration"
	default:
		return "error"
	}
}

// compile-time interface check
var (
	_ IDTokenVerifier = (*GoogleIDTokenVerifier)(nil)
	_ OAuthProvider   = (*GoogleOAuthProvider)(nil)
	_ SessionIssuer   = (*SessionManager)(nil)
)
