// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/readshare/internal/model"
	"github.com/hitoshi/readshare/internal/repository"
)

// Directory はログイン時のユーザー作成・更新を行う。
type Directory struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

// NewDirectory はDirectoryを生成する。
func NewDirectory(userRepo repository.UserRepository) *Directory {
	return &Directory{userRepo: userRepo, now: time.Now}
}

// WithClock は現在時刻の取得関数を差し替える。
func (d *Directory) WithClock(now func() time.Time) *Directory {
	d.now = now
	return d
}

// UpsertUser は検証済みプロフィールのemailでユーザーを検索し、
// 存在しなければ作成、存在すればnameとavatarを更新する。idとemailは変更しない。
//
// 同じemailの初回ログインが同時に発生した場合、後から挿入した側は一意制約で失敗するため、
// 先に作成された行の更新として再試行する。結果としてユーザーは1件だけ作成される。
func (d *Directory) UpsertUser(ctx context.Context, profile *model.Profile) (*model.User, error) {
	if profile == nil || profile.Email == "" {
		return nil, fmt.Errorf("profile email is required: %w", model.ErrValidation)
	}

	existing, err := d.userRepo.FindByEmail(ctx, profile.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %v: %w", err, model.ErrPersistence)
	}
	if existing != nil {
		return d.update(ctx, profile)
	}

	now := d.now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     profile.Email,
		Name:      profile.Name,
		AvatarURL: profile.AvatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = d.userRepo.Create(ctx, user)
	if errors.Is(err, model.ErrEmailConflict) {
		slog.Info("concurrent first login detected, updating existing user",
			slog.String("email", profile.Email),
		)
		return d.update(ctx, profile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %v: %w", err, model.ErrPersistence)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

func (d *Directory) update(ctx context.Context, profile *model.Profile) (*model.User, error) {
	user, err := d.userRepo.UpdateProfileByEmail(ctx, profile.Email, profile.Name, profile.AvatarURL, d.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %v: %w", err, model.ErrPersistence)
	}
	if user == nil {
		// 検索後に削除された。ユーザー削除はこのサービスの範囲外のため通常は起きない。
		return nil, fmt.Errorf("user %s disappeared during upsert: %w", profile.Email, model.ErrPersistence)
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。存在しない場合は model.ErrNotFound を返す。
func (d *Directory) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := d.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %v: %w", err, model.ErrPersistence)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	return user, nil
}
