package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/readshare/internal/metrics"
	"github.com/hitoshi/readshare/internal/model"
	"github.com/hitoshi/readshare/internal/repository"
)

// purgeTimeout は期限切れセッションの非同期削除に与える時間。
const purgeTimeout = 5 * time.Second

// SessionManager はセッションの発行・検証・失効を行う。
type SessionManager struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	metrics  metrics.MetricsCollector
	now      func() time.Time

	// 非同期のlazy削除の完了待ち用
	purges sync.WaitGroup
}

// NewSessionManager はSessionManagerを生成する。
func NewSessionManager(sessions repository.SessionRepository, users repository.UserRepository) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		users:    users,
		metrics:  metrics.Nop{},
		now:      time.Now,
	}
}

// WithMetrics はメトリクス収集先を設定する。
func (m *SessionManager) WithMetrics(c metrics.MetricsCollector) *SessionManager {
	m.metrics = c
	return m
}

// WithClock は現在時刻の取得関数を差し替える。
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now
	return m
}

// IssueSession はユーザーの新しいセッションを発行して永続化する。
// トークンは256bitの乱数で、クレームは含まない。有効期限は発行から7日。
func (m *SessionManager) IssueSession(ctx context.Context, user *model.User) (*model.Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := m.now()
	session := &model.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: now.Add(model.SessionTTL),
		CreatedAt: now,
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %v: %w", err, model.ErrPersistence)
	}

	return session, nil
}

// ParseAuthorizationHeader はAuthorizationヘッダーからトークンを取り出す。
// "Bearer <token>" と生のトークンの両方を受け付ける。
func ParseAuthorizationHeader(header string) string {
	token := strings.TrimPrefix(header, "Bearer ")
	return strings.TrimSpace(token)
}

// Authenticate はAuthorizationヘッダーの値からセッションを検証し、所有ユーザーを返す。
// 失敗時は*model.AuthFailureを返す。ストレージ障害もAuthFailureとして扱い、呼び出し元へ伝播させない。
// 期限切れのセッションは結果を待たせずに削除する。
func (m *SessionManager) Authenticate(ctx context.Context, header string) (*model.User, *model.AuthFailure) {
	if header == "" {
		m.metrics.RecordSessionCheck("missing")
		return nil, unauthorized(model.AuthMsgHeaderMissing)
	}

	token := ParseAuthorizationHeader(header)
	if token == "" {
		m.metrics.RecordSessionCheck("missing")
		return nil, unauthorized(model.AuthMsgTokenMissing)
	}

	session, err := m.sessions.FindByToken(ctx, token)
	if err != nil {
		slog.Error("session lookup failed", slog.String("error", err.Error()))
		m.metrics.RecordSessionCheck("error")
		return nil, unauthorized(model.AuthMsgFailed)
	}
	if session == nil {
		m.metrics.RecordSessionCheck("invalid")
		return nil, unauthorized(model.AuthMsgInvalidToken)
	}

	if session.IsExpired(m.now()) {
		m.purgeAsync(ctx, session.Token)
		m.metrics.RecordSessionCheck("expired")
		return nil, unauthorized(model.AuthMsgExpired)
	}

	user, err := m.users.FindByID(ctx, session.UserID)
	if err != nil {
		slog.Error("session user lookup failed",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		m.metrics.RecordSessionCheck("error")
		return nil, unauthorized(model.AuthMsgFailed)
	}
	if user == nil {
		m.metrics.RecordSessionCheck("invalid")
		return nil, unauthorized(model.AuthMsgInvalidToken)
	}

	m.metrics.RecordSessionCheck("ok")
	return user, nil
}

// Revoke はセッションを削除する。存在しないトークンでも成功とする。
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if err := m.sessions.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("failed to revoke session: %v: %w", err, model.ErrPersistence)
	}
	return nil
}

// RevokeAll はユーザーの全セッションを削除する。他の端末のログイン状態も失われる。
func (m *SessionManager) RevokeAll(ctx context.Context, userID string) error {
	if err := m.sessions.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke user sessions: %v: %w", err, model.ErrPersistence)
	}
	return nil
}

// Wait は実行中の非同期削除の完了を待つ。シャットダウン時に呼ぶ。
func (m *SessionManager) Wait() {
	m.purges.Wait()
}

// purgeAsync は期限切れセッションを別goroutineで削除する。
// リクエストのキャンセルに影響されないよう、親の値だけを引き継いだコンテキストを使う。
func (m *SessionManager) purgeAsync(ctx context.Context, token string) {
	ctx = context.WithoutCancel(ctx)
	m.purges.Add(1)
	go func() {
		defer m.purges.Done()
		ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
		defer cancel()
		if err := m.sessions.DeleteByToken(ctx, token); err != nil {
			slog.Warn("failed to purge expired session", slog.String("error", err.Error()))
			return
		}
		m.metrics.RecordSessionsPurged(1)
	}()
}

func unauthorized(msg string) *model.AuthFailure {
	return &model.AuthFailure{Message: msg, StatusCode: http.StatusUnauthorized}
}

// generateSessionToken は暗号学的に安全なセッショントークンを生成する。
func generateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
