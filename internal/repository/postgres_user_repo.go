package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/hitoshi/readshare/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, name, avatar_url, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresUserRepo.FindByID()")
	defer span.End()

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindByEmail はemailでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresUserRepo.FindByEmail()")
	defer span.End()

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// Create はユーザーを作成する。
// emailの一意制約違反は model.ErrEmailConflict として返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresUserRepo.Create()")
	defer span.End()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, avatar_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.Name, user.AvatarURL, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to insert user %s: %w", user.Email, model.ErrEmailConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateProfileByEmail はnameとavatar_urlを更新し、更新後のユーザーを返す。
// id・email・created_atは変更しない。
func (r *PostgresUserRepo) UpdateProfileByEmail(ctx context.Context, email, name, avatarURL string, updatedAt time.Time) (*model.User, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "PostgresUserRepo.UpdateProfileByEmail()")
	defer span.End()

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET name = $2, avatar_url = $3, updated_at = $4
		 WHERE email = $1
		 RETURNING `+userColumns,
		email, name, avatarURL, updatedAt,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
