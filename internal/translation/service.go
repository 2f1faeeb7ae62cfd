// Package translation は翻訳の投稿・編集・一覧のドメインロジックを提供する。
package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/readshare/internal/model"
	"github.com/hitoshi/readshare/internal/repository"
	"github.com/hitoshi/readshare/internal/security"
)

// 翻訳元の既定の言語。
const defaultSourceLanguage = "en"

// 必須項目が欠けている場合のメッセージ。
const msgMissingFields = "Missing required fields: originalText, translatedText, targetLanguage, and bookId are required"

// Input は翻訳の投稿・編集の入力。
type Input struct {
	BookID         string
	OriginalText   string
	TranslatedText string
	SourceLanguage string
	TargetLanguage string
	Context        string
	Chapter        string
	PageNumber     *int
}

// Service は翻訳のサービス層。
type Service struct {
	translationRepo repository.TranslationRepository
	bookRepo        repository.BookRepository
	sanitizer       security.TextSanitizer
	now             func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	translationRepo repository.TranslationRepository,
	bookRepo repository.BookRepository,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		translationRepo: translationRepo,
		bookRepo:        bookRepo,
		sanitizer:       sanitizer,
		now:             time.Now,
	}
}

// List はフィード表示用に翻訳を絞り込み・並び替えて返す。
func (s *Service) List(ctx context.Context, filter model.TranslationFilter) ([]model.Translation, error) {
	switch filter.Sort {
	case "":
		filter.Sort = model.TranslationSortNewest
	case model.TranslationSortNewest, model.TranslationSortOldest:
	default:
		return nil, model.NewValidationError("sort must be newest or oldest")
	}

	translations, err := s.translationRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("翻訳一覧の取得に失敗しました: %v: %w", err, model.ErrPersistence)
	}
	return translations, nil
}

// ListByBook は指定書籍の翻訳を新しい順に返す。書籍が存在しない場合は404。
func (s *Service) ListByBook(ctx context.Context, bookID string) ([]model.Translation, error) {
	if err := s.ensureBook(ctx, bookID); err != nil {
		return nil, err
	}
	translations, err := s.translationRepo.ListByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("翻訳一覧の取得に失敗しました: %v: %w", err, model.ErrPersistence)
	}
	return translations, nil
}

// Get は翻訳を1件返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Translation, error) {
	t, err := s.translationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("翻訳の取得に失敗しました: %v: %w", err, model.ErrPersistence)
	}
	if t == nil {
		return nil, model.NewNotFoundError("Translation not found")
	}
	return t, nil
}

// Create は翻訳を投稿する。投稿者はuserIDになる。
func (s *Service) Create(ctx context.Context, userID string, in Input) (*model.Translation, error) {
	in, err := s.normalize(ctx, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	t := &model.Translation{
		ID:             uuid.New().String(),
		BookID:         in.BookID,
		TranslatorID:   userID,
		OriginalText:   in.OriginalText,
		TranslatedText: in.TranslatedText,
		SourceLanguage: in.SourceLanguage,
		TargetLanguage: in.TargetLanguage,
		Context:        in.Context,
		Chapter:        in.Chapter,
		PageNumber:     in.PageNumber,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.translationRepo.Create(ctx, t); err != nil {
		// 存在確認後に書籍が削除された
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewNotFoundError("Book not found")
		}
		return nil, fmt.Errorf("翻訳の登録に失敗しました: %v: %w", err, model.ErrPersistence)
	}

	slog.Info("translation created",
		slog.String("translation_id", t.ID),
		slog.String("book_id", t.BookID),
		slog.String("user_id", userID),
	)
	return s.reload(ctx, t)
}

// Update は翻訳を編集する。投稿者本人のみ編集できる。
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*model.Translation, error) {
	existing, err := s.translationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("翻訳の取得に失敗しました: %v: %w", err, model.ErrPersistence)
	}
	if existing == nil {
		return nil, model.NewNotFoundError("Translation not found")
	}
	if existing.TranslatorID != userID {
		return nil, model.NewForbiddenError("You can only edit your own translations")
	}

	in, err = s.normalize(ctx, in)
	if err != nil {
		return nil, err
	}

	existing.BookID = in.BookID
	existing.OriginalText = in.OriginalText
	existing.TranslatedText = in.TranslatedText
	existing.SourceLanguage = in.SourceLanguage
	existing.TargetLanguage = in.TargetLanguage
	existing.Context = in.Context
	existing.Chapter = in.Chapter
	existing.PageNumber = in.PageNumber
	existing.UpdatedAt = s.now()

	if err := s.translationRepo.Update(ctx, existing); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewNotFoundError("Translation not found")
		}
		return nil, fmt.Errorf("翻訳の更新に失敗しました: %v: %w", err, model.ErrPersistence)
	}

	return s.reload(ctx, existing)
}

// normalize は入力をサニタイズし、必須項目と書籍の存在を確認する。
func (s *Service) normalize(ctx context.Context, in Input) (Input, error) {
	in.OriginalText = s.sanitizer.Sanitize(in.OriginalText)
	in.TranslatedText = s.sanitizer.Sanitize(in.TranslatedText)
	in.Context = s.sanitizer.Sanitize(in.Context)
	in.Chapter = s.sanitizer.Sanitize(in.Chapter)

	if in.OriginalText == "" || in.TranslatedText == "" || in.TargetLanguage == "" || in.BookID == "" {
		return in, model.NewValidationError(msgMissingFields)
	}
	if in.SourceLanguage == "" {
		in.SourceLanguage = defaultSourceLanguage
	}
	if in.PageNumber != nil && *in.PageNumber < 1 {
		return in, model.NewValidationError("pageNumber must be a positive integer")
	}

	if err := s.ensureBook(ctx, in.BookID); err != nil {
		return in, err
	}
	return in, nil
}

func (s *Service) ensureBook(ctx context.Context, bookID string) error {
	book, err := s.bookRepo.FindByID(ctx, bookID)
	if err != nil {
		return fmt.Errorf("書籍の取得に失敗しました: %v: %w", err, model.ErrPersistence)
	}
	if book == nil {
		return model.NewNotFoundError("Book not found")
	}
	return nil
}

// reload は保存後の翻訳を書籍・翻訳者情報付きで取得し直す。
// 取得できない場合は保存した値をそのまま返す。
func (s *Service) reload(ctx context.Context, t *model.Translation) (*model.Translation, error) {
	full, err := s.translationRepo.FindByID(ctx, t.ID)
	if err != nil {
		slog.Warn("failed to reload translation",
			slog.String("translation_id", t.ID),
			slog.String("error", err.Error()),
		)
		return t, nil
	}
	if full == nil {
		return t, nil
	}
	return full, nil
}
