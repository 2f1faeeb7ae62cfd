package book

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/readshare/internal/model"
	"github.com/hitoshi/readshare/internal/repository"
	"github.com/hitoshi/readshare/internal/security"
)

// --- モック ---

type mockBookRepo struct {
	listFn     func(ctx context.Context) ([]model.Book, error)
	findByIDFn func(ctx context.Context, id string) (*model.Book, error)
	createFn   func(ctx context.Context, book *model.Book) error
}

func (m *mockBookRepo) List(ctx context.Context) ([]model.Book, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockBookRepo) FindByID(ctx context.Context, id string) (*model.Book, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockBookRepo) Create(ctx context.Context, book *model.Book) error {
	if m.createFn != nil {
		return m.createFn(ctx, book)
	}
	return nil
}

var _ repository.BookRepository = (*mockBookRepo)(nil)

type mockTranslationRepo struct {
	repository.TranslationRepository
	listByBookFn func(ctx context.Context, bookID string) ([]model.Translation, error)
}

func (m *mockTranslationRepo) ListByBook(ctx context.Context, bookID string) ([]model.Translation, error) {
	if m.listByBookFn != nil {
		return m.listByBookFn(ctx, bookID)
	}
	return []model.Translation{}, nil
}

func newTestService(books *mockBookRepo, translations *mockTranslationRepo) *Service {
	if translations == nil {
		translations = &mockTranslationRepo{}
	}
	s := NewService(books, translations, security.NewTextSanitizer())
	s.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

// --- テスト ---

func TestService_Create_AppliesDefaults(t *testing.T) {
	var saved *model.Book
	svc := newTestService(&mockBookRepo{
		createFn: func(_ context.Context, b *model.Book) error {
			saved = b
			return nil
		},
	}, nil)

	got, err := svc.Create(context.Background(), "user-1", CreateInput{
		Title:  "Kokoro",
		Author: "Natsume Soseki",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got.ID == "" {
		t.Error("ID should be generated")
	}

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	want := &model.Book{
		ID:          got.ID,
		Title:       "Kokoro",
		Author:      "Natsume Soseki",
		Description: "",
		Language:    "en",
		CreatedBy:   "user-1",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if diff := cmp.Diff(want, saved); diff != "" {
		t.Errorf("saved book mismatch (-want +got):\n%s", diff)
	}
}

func TestService_Create_SanitizesText(t *testing.T) {
	var saved *model.Book
	svc := newTestService(&mockBookRepo{
		createFn: func(_ context.Context, b *model.Book) error {
			saved = b
			return nil
		},
	}, nil)

	_, err := svc.Create(context.Background(), "user-1", CreateInput{
		Title:       "<b>Kokoro</b>",
		Author:      "Natsume Soseki",
		Description: `A novel<script>alert(1)</script>`,
		Language:    "ja",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if saved.Title != "Kokoro" || saved.Description != "A novel" || saved.Language != "ja" {
		t.Errorf("saved = %+v", saved)
	}
}

func TestService_Create_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		in   CreateInput
	}{
		{"titleなし", CreateInput{Author: "A"}},
		{"authorなし", CreateInput{Title: "T"}},
		{"タグのみのtitle", CreateInput{Title: "<p></p>", Author: "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := newTestService(&mockBookRepo{
				createFn: func(context.Context, *model.Book) error {
					called = true
					return nil
				},
			}, nil)

			_, err := svc.Create(context.Background(), "user-1", tt.in)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Message != "Missing required fields: title and author are required" {
				t.Errorf("Message = %q", apiErr.Message)
			}
			if !errors.Is(err, model.ErrValidation) {
				t.Error("expected ErrValidation")
			}
			if called {
				t.Error("repository must not be called on validation failure")
			}
		})
	}
}

func TestService_Create_StorageFailure(t *testing.T) {
	svc := newTestService(&mockBookRepo{
		createFn: func(context.Context, *model.Book) error { return errors.New("connection refused") },
	}, nil)

	_, err := svc.Create(context.Background(), "user-1", CreateInput{Title: "T", Author: "A"})
	if !errors.Is(err, model.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestService_Get(t *testing.T) {
	book := &model.Book{ID: "b1", Title: "Kokoro", Author: "Natsume Soseki"}
	translations := []model.Translation{{ID: "t2"}, {ID: "t1"}}

	svc := newTestService(
		&mockBookRepo{findByIDFn: func(_ context.Context, id string) (*model.Book, error) {
			if id == "b1" {
				return book, nil
			}
			return nil, nil
		}},
		&mockTranslationRepo{listByBookFn: func(_ context.Context, bookID string) ([]model.Translation, error) {
			if bookID != "b1" {
				t.Errorf("bookID = %q", bookID)
			}
			return translations, nil
		}},
	)

	got, err := svc.Get(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "Kokoro" || len(got.Translations) != 2 || got.Translations[0].ID != "t2" {
		t.Errorf("detail = %+v", got)
	}

	_, err = svc.Get(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Book not found" {
		t.Errorf("expected Book not found, got %v", err)
	}
	if !errors.Is(err, model.ErrNotFound) {
		t.Error("expected ErrNotFound")
	}
}

func TestService_List(t *testing.T) {
	svc := newTestService(&mockBookRepo{
		listFn: func(context.Context) ([]model.Book, error) {
			return []model.Book{{ID: "b2"}, {ID: "b1"}}, nil
		},
	}, nil)

	books, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(books) != 2 {
		t.Errorf("len = %d, want 2", len(books))
	}

	failing := newTestService(&mockBookRepo{
		listFn: func(context.Context) ([]model.Book, error) { return nil, errors.New("boom") },
	}, nil)
	if _, err := failing.List(context.Background()); !errors.Is(err, model.ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}
}

// UUIDでないidはDBエラーではなく404として扱われる。
func TestService_Get_MalformedIDIsNotFound(t *testing.T) {
	svc := NewService(
		repository.NewPostgresBookRepo(nil),
		repository.NewPostgresTranslationRepo(nil),
		security.NewTextSanitizer(),
	)

	_, err := svc.Get(context.Background(), "abc")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, model.ErrPersistence) {
		t.Errorf("malformed id must not be reported as a persistence failure: %v", err)
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Book not found" {
		t.Errorf("message = %v, want %q", err, "Book not found")
	}
}
