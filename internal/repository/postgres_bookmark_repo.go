package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/hitoshi/readshare/internal/model"
)

// PostgresBookmarkRepo はPostgreSQLを使用したブックマークリポジトリ。
type PostgresBookmarkRepo struct {
	db *sql.DB
}

// NewPostgresBookmarkRepo はPostgresBookmarkRepoを生成する。
func NewPostgresBookmarkRepo(db *sql.DB) *PostgresBookmarkRepo {
	return &PostgresBookmarkRepo{db: db}
}

// 翻訳のブックマークは翻訳元の書籍タイトルも表示する。
const bookmarkSelect = `
	SELECT bm.id, bm.user_id, bm.book_id, bm.translation_id, bm.created_at,
	       COALESCE(b.title, tb.title, ''),
	       COALESCE(t.original_text, ''), COALESCE(t.translated_text, '')
	FROM bookmarks bm
	LEFT JOIN books b ON b.id = bm.book_id
	LEFT JOIN translations t ON t.id = bm.translation_id
	LEFT JOIN books tb ON tb.id = t.book_id`

func scanBookmark(row interface{ Scan(...any) error }) (*model.Bookmark, error) {
	bm := &model.Bookmark{}
	var bookID, translationID sql.NullString
	err := row.Scan(
		&bm.ID, &bm.UserID, &bookID, &translationID, &bm.CreatedAt,
		&bm.BookTitle, &bm.OriginalText, &bm.TranslatedText,
	)
	if err != nil {
		return nil, err
	}
	bm.BookID = bookID.String
	bm.TranslationID = translationID.String
	return bm, nil
}

// ListByUserID はユーザーのブックマークを作成日時の降順で返す。
func (r *PostgresBookmarkRepo) ListByUserID(ctx context.Context, userID string) ([]model.Bookmark, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresBookmarkRepo.ListByUserID()")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, bookmarkSelect+` WHERE bm.user_id = $1 ORDER BY bm.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := []model.Bookmark{}
	for rows.Next() {
		bm, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, *bm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookmarks: %w", err)
	}
	return bookmarks, nil
}

// FindByID は指定IDのブックマークを取得する。見つからない場合はnilを返す。
func (r *PostgresBookmarkRepo) FindByID(ctx context.Context, id string) (*model.Bookmark, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresBookmarkRepo.FindByID()")
	defer span.End()

	if !isUUID(id) {
		return nil, nil
	}

	bm, err := scanBookmark(r.db.QueryRowContext(ctx, bookmarkSelect+` WHERE bm.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find bookmark: %w", err)
	}
	return bm, nil
}

// FindByTarget はユーザーと対象でブックマークを検索する。見つからない場合はnilを返す。
func (r *PostgresBookmarkRepo) FindByTarget(ctx context.Context, userID, bookID, translationID string) (*model.Bookmark, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresBookmarkRepo.FindByTarget()")
	defer span.End()

	if !optionalUUID(bookID) || !optionalUUID(translationID) {
		return nil, nil
	}

	bm, err := scanBookmark(r.db.QueryRowContext(ctx,
		bookmarkSelect+` WHERE bm.user_id = $1
		   AND bm.book_id IS NOT DISTINCT FROM $2
		   AND bm.translation_id IS NOT DISTINCT FROM $3`,
		userID, nullString(bookID), nullString(translationID),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find bookmark by target: %w", err)
	}
	return bm, nil
}

// Create はブックマークを作成する。既に登録済みの場合はfalseを返す。
func (r *PostgresBookmarkRepo) Create(ctx context.Context, bookmark *model.Bookmark) (bool, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresBookmarkRepo.Create()")
	defer span.End()

	if !optionalUUID(bookmark.BookID) || !optionalUUID(bookmark.TranslationID) {
		return false, fmt.Errorf("bookmark target does not exist: %w", model.ErrNotFound)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO bookmarks (id, user_id, book_id, translation_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT DO NOTHING`,
		bookmark.ID, bookmark.UserID, nullString(bookmark.BookID), nullString(bookmark.TranslationID), bookmark.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return false, fmt.Errorf("bookmark target does not exist: %w", model.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert bookmark: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// Delete は指定IDのブックマークを削除する。
func (r *PostgresBookmarkRepo) Delete(ctx context.Context, id string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresBookmarkRepo.Delete()")
	defer span.End()

	if !isUUID(id) {
		return nil
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return nil
}

// optionalUUID は空文字列またはUUIDであればtrueを返す。
func optionalUUID(id string) bool {
	return id == "" || isUUID(id)
}

// compile-time interface check
var _ BookmarkRepository = (*PostgresBookmarkRepo)(nil)
