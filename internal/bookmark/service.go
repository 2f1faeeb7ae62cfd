// Package bookmark はブックマークのドメインロジックを提供する。
package bookmark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/readshare/internal/model"
	"github.com/hitoshi/readshare/internal/repository"
)

// AddInput はブックマーク追加の入力。BookIDとTranslationIDのどちらか一方を指定する。
type AddInput struct {
	BookID        string
	TranslationID string
}

// Service はブックマークのサービス層。
type Service struct {
	bookmarkRepo repository.BookmarkRepository
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(bookmarkRepo repository.BookmarkRepository) *Service {
	return &Service{bookmarkRepo: bookmarkRepo, now: time.Now}
}

// List はユーザーのブックマークを新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]model.Bookmark, error) {
	bookmarks, err := s.bookmarkRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ブックマーク一覧の取得に失敗しました: %v: %w", err, model.ErrPersistence)
	}
	return bookmarks, nil
}

// Add はブックマークを追加する。同じ対象が登録済みの場合は既存のものを返す。
// 2番目の戻り値は新規に作成したかどうか。
func (s *Service) Add(ctx context.Context, userID string, in AddInput) (*model.Bookmark, bool, error) {
	if (in.BookID == "") == (in.TranslationID == "") {
		return nil, false, model.NewValidationError("Exactly one of bookId or translationId is required")
	}

	bm := &model.Bookmark{
		ID:            uuid.New().String(),
		UserID:        userID,
		BookID:        in.BookID,
		TranslationID: in.TranslationID,
		CreatedAt:     s.now(),
	}

	created, err := s.bookmarkRepo.Create(ctx, bm)
	if errors.Is(err, model.ErrNotFound) {
		if in.BookID != "" {
			return nil, false, model.NewNotFoundError("Book not found")
		}
		return nil, false, model.NewNotFoundError("Translation not found")
	}
	if err != nil {
		return nil, false, fmt.Errorf("ブックマークの作成に失敗しました: %v: %w", err, model.ErrPersistence)
	}

	saved, err := s.bookmarkRepo.FindByTarget(ctx, userID, in.BookID, in.TranslationID)
	if err != nil {
		return nil, false, fmt.Errorf("ブックマークの取得に失敗しました: %v: %w", err, model.ErrPersistence)
	}
	if saved == nil {
		// 作成直後に削除された
		return nil, false, model.NewNotFoundError("Bookmark not found")
	}
	return saved, created, nil
}

// Remove はブックマークを削除する。他人のブックマークは削除できない。
func (s *Service) Remove(ctx context.Context, userID, bookmarkID string) error {
	bm, err := s.bookmarkRepo.FindByID(ctx, bookmarkID)
	if err != nil {
		return fmt.Errorf("ブックマークの取得に失敗しました: %v: %w", err, model.ErrPersistence)
	}
	if bm == nil {
		return model.NewNotFoundError("Bookmark not found")
	}
	if bm.UserID != userID {
		return model.NewForbiddenError("You can only remove your own bookmarks")
	}

	if err := s.bookmarkRepo.Delete(ctx, bookmarkID); err != nil {
		return fmt.Errorf("ブックマークの削除に失敗しました: %v: %w", err, model.ErrPersistence)
	}
	return nil
}
