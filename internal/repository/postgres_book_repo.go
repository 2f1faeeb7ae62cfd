package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/hitoshi/readshare/internal/model"
)

// PostgresBookRepo はPostgreSQLを使用した書籍リポジトリ。
type PostgresBookRepo struct {
	db *sql.DB
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(db *sql.DB) *PostgresBookRepo {
	return &PostgresBookRepo{db: db}
}

const bookSelect = `
	SELECT b.id, b.title, b.author, b.description, b.language, b.cover_image,
	       b.created_by, b.created_at, b.updated_at,
	       (SELECT count(*) FROM translations t WHERE t.book_id = b.id),
	       (SELECT count(*) FROM bookmarks bm WHERE bm.book_id = b.id)
	FROM books b`

func scanBook(row interface{ Scan(...any) error }) (*model.Book, error) {
	b := &model.Book{}
	var createdBy sql.NullString
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.Description, &b.Language, &b.CoverImage,
		&createdBy, &b.CreatedAt, &b.UpdatedAt,
		&b.TranslationsCount, &b.BookmarksCount,
	)
	if err != nil {
		return nil, err
	}
	b.CreatedBy = createdBy.String
	return b, nil
}

// List は書籍を登録日時の降順で返す。
func (r *PostgresBookRepo) List(ctx context.Context) ([]model.Book, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresBookRepo.List()")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, bookSelect+` ORDER BY b.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	books := []model.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}
	return books, nil
}

// FindByID は指定IDの書籍を取得する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByID(ctx context.Context, id string) (*model.Book, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresBookRepo.FindByID()")
	defer span.End()

	if !isUUID(id) {
		return nil, nil
	}

	b, err := scanBook(r.db.QueryRowContext(ctx, bookSelect+` WHERE b.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find book: %w", err)
	}
	return b, nil
}

// Create は書籍を作成する。
func (r *PostgresBookRepo) Create(ctx context.Context, book *model.Book) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresBookRepo.Create()")
	defer span.End()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO books (id, title, author, description, language, cover_image, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		book.ID, book.Title, book.Author, book.Description, book.Language, book.CoverImage,
		nullString(book.CreatedBy), book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

// nullString は空文字列をNULLとして扱う。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)
