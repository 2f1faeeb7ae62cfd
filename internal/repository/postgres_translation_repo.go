package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/hitoshi/readshare/internal/model"
)

// PostgresTranslationRepo はPostgreSQLを使用した翻訳リポジトリ。
type PostgresTranslationRepo struct {
	db *sql.DB
}

// NewPostgresTranslationRepo はPostgresTranslationRepoを生成する。
func NewPostgresTranslationRepo(db *sql.DB) *PostgresTranslationRepo {
	return &PostgresTranslationRepo{db: db}
}

const translationSelect = `
	SELECT t.id, t.book_id, t.translator_id, t.original_text, t.translated_text,
	       t.source_language, t.target_language, t.context, t.chapter, t.page_number,
	       t.created_at, t.updated_at,
	       b.title, b.author, b.cover_image, u.name,
	       (SELECT count(*) FROM bookmarks bm WHERE bm.translation_id = t.id)
	FROM translations t
	JOIN books b ON b.id = t.book_id
	JOIN users u ON u.id = t.translator_id`

func scanTranslation(row interface{ Scan(...any) error }) (*model.Translation, error) {
	t := &model.Translation{}
	var page sql.NullInt64
	err := row.Scan(
		&t.ID, &t.BookID, &t.TranslatorID, &t.OriginalText, &t.TranslatedText,
		&t.SourceLanguage, &t.TargetLanguage, &t.Context, &t.Chapter, &page,
		&t.CreatedAt, &t.UpdatedAt,
		&t.BookTitle, &t.BookAuthor, &t.BookCoverImage, &t.TranslatorName,
		&t.BookmarksCount,
	)
	if err != nil {
		return nil, err
	}
	if page.Valid {
		p := int(page.Int64)
		t.PageNumber = &p
	}
	return t, nil
}

// buildTranslationListQuery はフィルタ条件からSELECT文と引数を組み立てる。
func buildTranslationListQuery(filter model.TranslationFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.BookID != "" {
		add("t.book_id = $%d", filter.BookID)
	}
	if filter.SourceLanguage != "" {
		add("t.source_language = $%d", filter.SourceLanguage)
	}
	if filter.TargetLanguage != "" {
		add("t.target_language = $%d", filter.TargetLanguage)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(t.original_text ILIKE $%d OR t.translated_text ILIKE $%d)", n, n))
	}

	var sb strings.Builder
	sb.WriteString(translationSelect)
	if len(conds) > 0 {
		sb.WriteString("\n\tWHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	if filter.Sort == model.TranslationSortOldest {
		sb.WriteString("\n\tORDER BY t.created_at ASC, t.id ASC")
	} else {
		sb.WriteString("\n\tORDER BY t.created_at DESC, t.id DESC")
	}
	return sb.String(), args
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// List はfilterに一致する翻訳を返す。
func (r *PostgresTranslationRepo) List(ctx context.Context, filter model.TranslationFilter) ([]model.Translation, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresTranslationRepo.List()")
	defer span.End()

	if !optionalUUID(filter.BookID) {
		return []model.Translation{}, nil
	}

	query, args := buildTranslationListQuery(filter)
	return r.query(ctx, query, args...)
}

// ListByBook は指定書籍の翻訳を作成日時の降順で返す。
func (r *PostgresTranslationRepo) ListByBook(ctx context.Context, bookID string) ([]model.Translation, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresTranslationRepo.ListByBook()")
	defer span.End()

	if !isUUID(bookID) {
		return []model.Translation{}, nil
	}

	query, args := buildTranslationListQuery(model.TranslationFilter{BookID: bookID})
	return r.query(ctx, query, args...)
}

func (r *PostgresTranslationRepo) query(ctx context.Context, query string, args ...any) ([]model.Translation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list translations: %w", err)
	}
	defer rows.Close()

	translations := []model.Translation{}
	for rows.Next() {
		t, err := scanTranslation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan translation: %w", err)
		}
		translations = append(translations, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate translations: %w", err)
	}
	return translations, nil
}

// FindByID は指定IDの翻訳を取得する。見つからない場合はnilを返す。
func (r *PostgresTranslationRepo) FindByID(ctx context.Context, id string) (*model.Translation, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresTranslationRepo.FindByID()")
	defer span.End()

	if !isUUID(id) {
		return nil, nil
	}

	t, err := scanTranslation(r.db.QueryRowContext(ctx, translationSelect+` WHERE t.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find translation: %w", err)
	}
	return t, nil
}

// Create は翻訳を作成する。
func (r *PostgresTranslationRepo) Create(ctx context.Context, t *model.Translation) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresTranslationRepo.Create()")
	defer span.End()

	if !isUUID(t.BookID) {
		return fmt.Errorf("book %s does not exist: %w", t.BookID, model.ErrNotFound)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO translations (id, book_id, translator_id, original_text, translated_text,
		     source_language, target_language, context, chapter, page_number, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.BookID, t.TranslatorID, t.OriginalText, t.TranslatedText,
		t.SourceLanguage, t.TargetLanguage, t.Context, t.Chapter, nullInt(t.PageNumber),
		t.CreatedAt, t.UpdatedAt,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("book %s does not exist: %w", t.BookID, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to insert translation: %w", err)
	}
	return nil
}

// Update は翻訳を更新する。translator_idとcreated_atは変更しない。
// 移動先の書籍が存在しない場合は model.ErrNotFound をラップして返す。
func (r *PostgresTranslationRepo) Update(ctx context.Context, t *model.Translation) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresTranslationRepo.Update()")
	defer span.End()

	if !isUUID(t.ID) {
		return fmt.Errorf("translation %s: %w", t.ID, model.ErrNotFound)
	}
	if !isUUID(t.BookID) {
		return fmt.Errorf("book %s does not exist: %w", t.BookID, model.ErrNotFound)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE translations
		 SET original_text = $2, translated_text = $3, source_language = $4, target_language = $5,
		     context = $6, chapter = $7, page_number = $8, updated_at = $9, book_id = $10
		 WHERE id = $1`,
		t.ID, t.OriginalText, t.TranslatedText, t.SourceLanguage, t.TargetLanguage,
		t.Context, t.Chapter, nullInt(t.PageNumber), t.UpdatedAt, t.BookID,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("book %s does not exist: %w", t.BookID, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update translation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("translation %s: %w", t.ID, model.ErrNotFound)
	}
	return nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// compile-time interface check
var _ TranslationRepository = (*PostgresTranslationRepo)(nil)
