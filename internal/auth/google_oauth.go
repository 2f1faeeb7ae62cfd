package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/hitoshi/readshare/internal/model"
)

const (
	defaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	// IDトークンとアクセストークンをフロントエンドで直接受け取るフロー。
	implicitResponseType = "id_token token"
)

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // redirectURIが指定されない場合に使用する

	// HTTPClient はトークン・ユーザー情報エンドポイントの呼び出しに使用する。
	// タイムアウトを設定したクライアントを渡すこと。
	HTTPClient *http.Client

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// GoogleOAuthProvider はGoogle OAuth 2.0の認可URL生成と認可コード交換を提供する。
type GoogleOAuthProvider struct {
	config     GoogleOAuthConfig
	httpClient *http.Client
	observe    func(time.Duration)
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleOAuthProvider{config: config, httpClient: client}
}

// WithLatencyObserver はIdP呼び出しのレイテンシ通知先を設定する。
func (p *GoogleOAuthProvider) WithLatencyObserver(fn func(time.Duration)) *GoogleOAuthProvider {
	p.observe = fn
	return p
}

func (p *GoogleOAuthProvider) oauth2Config(redirectURI string) *oauth2.Config {
	if redirectURI == "" {
		redirectURI = p.config.RedirectURL
	}
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.config.AuthURL,
			TokenURL:  p.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{oidc.ScopeOpenID, "email", "profile"},
	}
}

// AuthURL はGoogleの認可URLを生成する。
// nonceはIDトークンのnonceクレームとして返却され、検証時に照合する。
// クライアントIDが未設定の場合は model.ErrConfiguration を返す。
func (p *GoogleOAuthProvider) AuthURL(nonce, redirectURI string) (string, error) {
	if p.config.ClientID == "" {
		return "", fmt.Errorf("google client id is not set: %w", model.ErrConfiguration)
	}
	return p.oauth2Config(redirectURI).AuthCodeURL("",
		oauth2.SetAuthURLParam("response_type", implicitResponseType),
		oauth2.SetAuthURLParam("nonce", nonce),
	), nil
}

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
type googleUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
// いずれかの呼び出しが失敗した場合は model.ErrUpstream を返す。リトライはしない。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (*model.Profile, error) {
	if p.config.ClientID == "" || p.config.ClientSecret == "" {
		return nil, fmt.Errorf("google client id or secret is not set: %w", model.ErrConfiguration)
	}

	start := time.Now()
	defer func() {
		if p.observe != nil {
			p.observe(time.Since(start))
		}
	}()

	// 1. 認可コードをアクセストークンに交換
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.oauth2Config(redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %v: %w", err, model.ErrUpstream)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response: %w", model.ErrUpstream)
	}

	// 2. アクセストークンでユーザー情報を取得
	info, err := p.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	return &model.Profile{
		SubjectID: info.Sub,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	}, nil
}

// fetchUserInfo はアクセストークンでGoogleのユーザー情報を取得する。
func (p *GoogleOAuthProvider) fetchUserInfo(ctx context.Context, accessToken string) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %v: %w", err, model.ErrUpstream)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %v: %w", err, model.ErrUpstream)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %w", resp.StatusCode, model.ErrUpstream)
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %v: %w", err, model.ErrUpstream)
	}

	if info.Sub == "" || info.Email == "" {
		return nil, fmt.Errorf("user info response lacks sub or email: %w", model.ErrUpstream)
	}

	return &info, nil
}
