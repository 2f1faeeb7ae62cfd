package model

import "time"

// Book は翻訳の対象となる書籍を表す。
type Book struct {
	ID                string
	Title             string
	Author            string
	Description       string
	Language          string
	CoverImage        string
	CreatedBy         string // 登録したユーザーのID
	TranslationsCount int
	BookmarksCount    int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BookDetail は書籍とその翻訳一覧を表す。
type BookDetail struct {
	Book
	Translations []Translation
}

// Translation はユーザーが投稿した一節の翻訳を表す。
type Translation struct {
	ID             string
	BookID         string
	TranslatorID   string
	OriginalText   string
	TranslatedText string
	SourceLanguage string
	TargetLanguage string
	Context        string
	Chapter        string
	PageNumber     *int
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// 一覧表示用に結合される付随情報
	BookTitle      string
	BookAuthor     string
	BookCoverImage string
	TranslatorName string
	BookmarksCount int
}

// TranslationSort は翻訳一覧の並び順を表す。
type TranslationSort string

const (
	// TranslationSortNewest は作成日時の降順。
	TranslationSortNewest TranslationSort = "newest"
	// TranslationSortOldest は作成日時の昇順。
	TranslationSortOldest TranslationSort = "oldest"
)

// TranslationFilter はフィード表示用の翻訳一覧の絞り込み条件。
// 空文字列のフィールドは条件に含めない。
type TranslationFilter struct {
	BookID         string
	SourceLanguage string
	TargetLanguage string
	Query          string
	Sort           TranslationSort
}

// Bookmark はユーザーが保存した書籍または翻訳を表す。
// BookIDとTranslationIDのどちらか一方のみが設定される。
type Bookmark struct {
	ID            string
	UserID        string
	BookID        string
	TranslationID string
	CreatedAt     time.Time

	// 一覧表示用の付随情報
	BookTitle      string
	OriginalText   string
	TranslatedText string
}
