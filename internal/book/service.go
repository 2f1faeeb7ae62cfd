// Package book は書籍のドメインロジックを提供する。
package book

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/readshare/internal/model"
	"github.com/hitoshi/readshare/internal/repository"
	"github.com/hitoshi/readshare/internal/security"
)

// 書籍の既定の言語。
const defaultLanguage = "en"

// CreateInput は書籍登録の入力。
type CreateInput struct {
	Title       string
	Author      string
	Description string
	Language    string
	CoverImage  string
}

// Service は書籍の一覧・詳細・登録を提供する。
type Service struct {
	bookRepo        repository.BookRepository
	translationRepo repository.TranslationRepository
	sanitizer       security.TextSanitizer
	now             func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	bookRepo repository.BookRepository,
	translationRepo repository.TranslationRepository,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		bookRepo:        bookRepo,
		translationRepo: translationRepo,
		sanitizer:       sanitizer,
		now:             time.Now,
	}
}

// List は書籍を登録日時の降順で返す。
func (s *Service) List(ctx context.Context) ([]model.Book, error) {
	books, err := s.bookRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("書籍一覧の取得に失敗しました: %v: %w", err, model.ErrPersistence)
	}
	return books, nil
}

// Get は書籍とその翻訳一覧（新しい順）を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.BookDetail, error) {
	book, err := s.bookRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("書籍の取得に失敗しました: %v: %w", err, model.ErrPersistence)
	}
	if book == nil {
		return nil, model.NewNotFoundError("Book not found")
	}

	translations, err := s.translationRepo.ListByBook(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("翻訳一覧の取得に失敗しました: %v: %w", err, model.ErrPersistence)
	}

	return &model.BookDetail{Book: *book, Translations: translations}, nil
}

// Create は書籍を登録する。titleとauthorは必須。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Book, error) {
	title := s.sanitizer.Sanitize(in.Title)
	author := s.sanitizer.Sanitize(in.Author)
	if title == "" || author == "" {
		return nil, model.NewValidationError("Missing required fields: title and author are required")
	}

	language := in.Language
	if language == "" {
		language = defaultLanguage
	}

	now := s.now()
	book := &model.Book{
		ID:          uuid.New().String(),
		Title:       title,
		Author:      author,
		Description: s.sanitizer.Sanitize(in.Description),
		Language:    language,
		CoverImage:  in.CoverImage,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("書籍の登録に失敗しました: %v: %w", err, model.ErrPersistence)
	}

	slog.Info("book created",
		slog.String("book_id", book.ID),
		slog.String("user_id", userID),
	)
	return book, nil
}
