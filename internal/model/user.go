// Package model はドメインモデルを定義する。
package model

import "time"

// SessionTTL はセッションの有効期間。ポリシーとして固定値で運用する。
const SessionTTL = 7 * 24 * time.Hour

// User はサービス利用ユーザーを表す。
// emailはログイン時のUPSERTキー。IDは作成後に変更されない。
type User struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// Tokenはクライアントに渡す不透明な値で、クレームを含まない。
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired はnow時点でセッションが期限切れかどうかを返す。
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Profile はIdPで検証済みのユーザー情報を表す。
// 永続化はせず、Userの作成・更新にのみ使用する。
type Profile struct {
	SubjectID string
	Email     string
	Name      string
	AvatarURL string
}
