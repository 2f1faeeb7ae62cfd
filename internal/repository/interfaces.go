// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/readshare/internal/model"
)

// tracerName はリポジトリのスパンに使用するトレーサー名。
const tracerName = "github.com/hitoshi/readshare/internal/repository"

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はemailでユーザーを検索する。大文字小文字は区別する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// emailが既に存在する場合は model.ErrEmailConflict をラップして返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfileByEmail はemailで特定したユーザーのnameとavatar_urlを更新し、
	// 更新後のユーザーを返す。見つからない場合はnilを返す。
	UpdateProfileByEmail(ctx context.Context, email, name, avatarURL string, updatedAt time.Time) (*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByToken は指定トークンのセッションを取得する。
	// 期限切れのセッションもそのまま返し、判定は呼び出し側が行う。見つからない場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.Session, error)

	// DeleteByToken は指定トークンのセッションを削除する。存在しない場合も成功とする。
	DeleteByToken(ctx context.Context, token string) error

	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error

	// DeleteExpired はbefore時点で期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// BookRepository は書籍データの永続化インターフェース。
type BookRepository interface {
	// List は書籍を登録日時の降順で、翻訳数・ブックマーク数付きで返す。
	List(ctx context.Context) ([]model.Book, error)

	// FindByID は指定IDの書籍を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Book, error)

	// Create は書籍を作成する。
	Create(ctx context.Context, book *model.Book) error
}

// TranslationRepository は翻訳データの永続化インターフェース。
type TranslationRepository interface {
	// List はfilterに一致する翻訳を書籍・翻訳者情報付きで返す。
	List(ctx context.Context, filter model.TranslationFilter) ([]model.Translation, error)

	// ListByBook は指定書籍の翻訳を作成日時の降順で返す。
	ListByBook(ctx context.Context, bookID string) ([]model.Translation, error)

	// FindByID は指定IDの翻訳を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Translation, error)

	// Create は翻訳を作成する。
	Create(ctx context.Context, t *model.Translation) error

	// Update は翻訳の本文・言語・補足情報を更新する。
	Update(ctx context.Context, t *model.Translation) error
}

// BookmarkRepository はブックマークの永続化インターフェース。
type BookmarkRepository interface {
	// ListByUserID はユーザーのブックマークを作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.Bookmark, error)

	// FindByID は指定IDのブックマークを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Bookmark, error)

	// FindByTarget はユーザーと対象（書籍または翻訳）でブックマークを検索する。
	// 見つからない場合はnilを返す。
	FindByTarget(ctx context.Context, userID, bookID, translationID string) (*model.Bookmark, error)

	// Create はブックマークを作成する。同じ対象が既に登録済みの場合は何もせずfalseを返す。
	// 対象が存在しない場合は model.ErrNotFound をラップして返す。
	Create(ctx context.Context, bookmark *model.Bookmark) (bool, error)

	// Delete は指定IDのブックマークを削除する。
	Delete(ctx context.Context, id string) error
}
