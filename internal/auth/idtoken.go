package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/hitoshi/readshare/internal/model"
)

const defaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// googleIssuers はGoogleが発行するIDトークンのissとして許可する値。
var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// IDTokenVerifierConfig はIDトークン検証の設定。
type IDTokenVerifierConfig struct {
	ClientID string

	// HTTPClient は公開鍵(JWKS)の取得に使用する。
	HTTPClient *http.Client

	// テスト用にオーバーライド可能な値
	JWKSURL string
	Issuers []string
	Now     func() time.Time
}

// GoogleIDTokenVerifier はGoogleのIDトークンを検証する。
// 署名はGoogleの公開鍵で、audはクライアントIDとの完全一致で、expは現在時刻で検証する。
type GoogleIDTokenVerifier struct {
	clientID string
	issuers  []string
	verifier *oidc.IDTokenVerifier
	observe  func(time.Duration)
}

// NewGoogleIDTokenVerifier はGoogleIDTokenVerifierを生成する。
// ctxは公開鍵の取得に使われ続けるため、アプリケーションのライフタイムを持つものを渡すこと。
func NewGoogleIDTokenVerifier(ctx context.Context, cfg IDTokenVerifierConfig) *GoogleIDTokenVerifier {
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = defaultGoogleJWKSURL
	}
	if len(cfg.Issuers) == 0 {
		cfg.Issuers = googleIssuers
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	keySet := oidc.NewRemoteKeySet(oidc.ClientContext(ctx, client), cfg.JWKSURL)
	verifier := oidc.NewVerifier("", keySet, &oidc.Config{
		ClientID: cfg.ClientID,
		// issはGoogleが2種類の表記を使うため、下で個別に照合する
		SkipIssuerCheck: true,
		Now:             cfg.Now,
	})

	return &GoogleIDTokenVerifier{
		clientID: cfg.ClientID,
		issuers:  cfg.Issuers,
		verifier: verifier,
	}
}

// WithLatencyObserver はIdP呼び出しのレイテンシ通知先を設定する。
func (v *GoogleIDTokenVerifier) WithLatencyObserver(fn func(time.Duration)) *GoogleIDTokenVerifier {
	v.observe = fn
	return v
}

// idTokenClaims はプロフィールとして取り出すクレーム。
type idTokenClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Verify はIDトークンを検証し、プロフィールを返す。
// expectedNonceが空でない場合はnonceクレームとの一致も要求する。
//
// 戻り値のエラーは以下のいずれかをラップする:
//   - model.ErrConfiguration: クライアントIDが未設定
//   - model.ErrUpstream: 公開鍵を取得できなかった
//   - model.ErrInvalidCredential: それ以外の検証失敗
func (v *GoogleIDTokenVerifier) Verify(ctx context.Context, rawIDToken, expectedNonce string) (*model.Profile, error) {
	if v.clientID == "" {
		return nil, fmt.Errorf("google client id is not set: %w", model.ErrConfiguration)
	}

	start := time.Now()
	token, err := v.verifier.Verify(ctx, rawIDToken)
	if v.observe != nil {
		v.observe(time.Since(start))
	}
	if err != nil {
		if isKeyFetchFailure(err) {
			return nil, fmt.Errorf("failed to fetch signing keys: %v: %w", err, model.ErrUpstream)
		}
		return nil, fmt.Errorf("id token verification failed: %v: %w", err, model.ErrInvalidCredential)
	}

	if !slices.Contains(v.issuers, token.Issuer) {
		return nil, fmt.Errorf("unexpected issuer %q: %w", token.Issuer, model.ErrInvalidCredential)
	}
	// go-oidcはaudの包含のみを確認するため、単一値での完全一致を追加で要求する
	if len(token.Audience) != 1 || token.Audience[0] != v.clientID {
		return nil, fmt.Errorf("audience mismatch: %w", model.ErrInvalidCredential)
	}
	if expectedNonce != "" && token.Nonce != expectedNonce {
		return nil, fmt.Errorf("nonce mismatch: %w", model.ErrInvalidCredential)
	}

	var claims idTokenClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode claims: %v: %w", err, model.ErrInvalidCredential)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("id token has no email claim: %w", model.ErrInvalidCredential)
	}

	return &model.Profile{
		SubjectID: token.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.Picture,
	}, nil
}

// keyFetchFailureMarkers は公開鍵の取得・解析に失敗したときのgo-oidcのエラーメッセージ。
// 署名検証エラーは%vで包まれて返るため、エラーチェーンではなくメッセージで判定する。
var keyFetchFailureMarkers = []string{
	"fetching keys",
	"get keys failed",
	"failed to decode keys",
}

// isKeyFetchFailure は検証エラーがIdP側の障害（鍵の取得失敗やタイムアウト）によるものかを判定する。
// リクエストごとのエラーだけを見るため、同時に行われた別の検証の失敗には影響されない。
func isKeyFetchFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	for _, m := range keyFetchFailureMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
