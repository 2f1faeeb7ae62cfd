package translation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/readshare/internal/model"
	"github.com/hitoshi/readshare/internal/repository"
	"github.com/hitoshi/readshare/internal/security"
)

// --- モック ---

type mockTranslationRepo struct {
	listFn       func(ctx context.Context, filter model.TranslationFilter) ([]model.Translation, error)
	listByBookFn func(ctx context.Context, bookID string) ([]model.Translation, error)
	findByIDFn   func(ctx context.Context, id string) (*model.Translation, error)
	createFn     func(ctx context.Context, t *model.Translation) error
	updateFn     func(ctx context.Context, t *model.Translation) error
}

func (m *mockTranslationRepo) List(ctx context.Context, filter model.TranslationFilter) ([]model.Translation, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []model.Translation{}, nil
}
func (m *mockTranslationRepo) ListByBook(ctx context.Context, bookID string) ([]model.Translation, error) {
	if m.listByBookFn != nil {
		return m.listByBookFn(ctx, bookID)
	}
	return []model.Translation{}, nil
}
func (m *mockTranslationRepo) FindByID(ctx context.Context, id string) (*model.Translation, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockTranslationRepo) Create(ctx context.Context, t *model.Translation) error {
	if m.createFn != nil {
		return m.createFn(ctx, t)
	}
	return nil
}
func (m *mockTranslationRepo) Update(ctx context.Context, t *model.Translation) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, t)
	}
	return nil
}

var _ repository.TranslationRepository = (*mockTranslationRepo)(nil)

// bookRepo は固定の書籍集合を返す。
type bookRepo struct {
	repository.BookRepository
	books map[string]*model.Book
	err   error
}

func (r *bookRepo) FindByID(_ context.Context, id string) (*model.Book, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.books[id], nil
}

func knownBooks() *bookRepo {
	return &bookRepo{books: map[string]*model.Book{"book-1": {ID: "book-1", Title: "Kokoro"}}}
}

var testNow = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

func newTestService(tr *mockTranslationRepo, br *bookRepo) *Service {
	s := NewService(tr, br, security.NewTextSanitizer())
	s.now = func() time.Time { return testNow }
	return s
}

func validInput() Input {
	return Input{
		BookID:         "book-1",
		OriginalText:   "I am a cat.",
		TranslatedText: "吾輩は猫である。",
		TargetLanguage: "ja",
	}
}

func assertAPIError(t *testing.T, err error, sentinel error, msg string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != msg {
		t.Errorf("Message = %q, want %q", apiErr.Message, msg)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("expected %v, got %v", sentinel, err)
	}
}

// --- テスト ---

func TestService_Create(t *testing.T) {
	stored := map[string]*model.Translation{}
	repo := &mockTranslationRepo{
		createFn: func(_ context.Context, tr *model.Translation) error {
			c := *tr
			stored[tr.ID] = &c
			return nil
		},
		findByIDFn: func(_ context.Context, id string) (*model.Translation, error) {
			tr, ok := stored[id]
			if !ok {
				return nil, nil
			}
			c := *tr
			c.BookTitle = "Kokoro"
			c.TranslatorName = "Reader"
			return &c, nil
		},
	}
	svc := newTestService(repo, knownBooks())

	in := validInput()
	in.Context = "<i>opening line</i>"
	got, err := svc.Create(context.Background(), "user-1", in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got.TranslatorID != "user-1" {
		t.Errorf("TranslatorID = %q", got.TranslatorID)
	}
	if got.SourceLanguage != "en" {
		t.Errorf("SourceLanguage = %q, want default en", got.SourceLanguage)
	}
	if got.Context != "opening line" {
		t.Errorf("Context = %q, want sanitized text", got.Context)
	}
	if !got.CreatedAt.Equal(testNow) || !got.UpdatedAt.Equal(testNow) {
		t.Errorf("timestamps = %v/%v", got.CreatedAt, got.UpdatedAt)
	}
	if got.BookTitle != "Kokoro" || got.TranslatorName != "Reader" {
		t.Errorf("joined fields not reloaded: %+v", got)
	}
}

func TestService_Create_Validation(t *testing.T) {
	page0 := 0
	tests := []struct {
		name   string
		mutate func(in *Input)
		msg    string
	}{
		{"originalTextなし", func(in *Input) { in.OriginalText = "" }, msgMissingFields},
		{"translatedTextなし", func(in *Input) { in.TranslatedText = " " }, msgMissingFields},
		{"targetLanguageなし", func(in *Input) { in.TargetLanguage = "" }, msgMissingFields},
		{"bookIdなし", func(in *Input) { in.BookID = "" }, msgMissingFields},
		{"pageNumberが0", func(in *Input) { in.PageNumber = &page0 }, "pageNumber must be a positive integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockTranslationRepo{
				createFn: func(context.Context, *model.Translation) error {
					t.Error("Create must not be called")
					return nil
				},
			}, knownBooks())
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), "user-1", in)
			assertAPIError(t, err, model.ErrValidation, tt.msg)
		})
	}
}

func TestService_Create_UnknownBook(t *testing.T) {
	svc := newTestService(&mockTranslationRepo{}, knownBooks())
	in := validInput()
	in.BookID = "book-404"

	_, err := svc.Create(context.Background(), "user-1", in)
	assertAPIError(t, err, model.ErrNotFound, "Book not found")
}

func TestService_Create_StorageFailure(t *testing.T) {
	svc := newTestService(&mockTranslationRepo{
		createFn: func(context.Context, *model.Translation) error { return errors.New("disk full") },
	}, knownBooks())

	_, err := svc.Create(context.Background(), "user-1", validInput())
	if !errors.Is(err, model.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestService_Update(t *testing.T) {
	existing := &model.Translation{
		ID:             "tr-1",
		BookID:         "book-1",
		TranslatorID:   "owner",
		OriginalText:   "old",
		TranslatedText: "古い",
		SourceLanguage: "en",
		TargetLanguage: "ja",
		CreatedAt:      testNow.Add(-time.Hour),
	}

	tests := []struct {
		name    string
		userID  string
		id      string
		wantErr error
		wantMsg string
	}{
		{name: "本人は編集できる", userID: "owner", id: "tr-1"},
		{name: "他人は編集できない", userID: "intruder", id: "tr-1", wantErr: model.ErrForbidden, wantMsg: "You can only edit your own translations"},
		{name: "存在しない翻訳", userID: "owner", id: "tr-404", wantErr: model.ErrNotFound, wantMsg: "Translation not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var updated *model.Translation
			repo := &mockTranslationRepo{
				findByIDFn: func(_ context.Context, id string) (*model.Translation, error) {
					if id != "tr-1" {
						return nil, nil
					}
					if updated != nil {
						c := *updated
						return &c, nil
					}
					c := *existing
					return &c, nil
				},
				updateFn: func(_ context.Context, tr *model.Translation) error {
					c := *tr
					updated = &c
					return nil
				},
			}
			svc := newTestService(repo, knownBooks())

			in := validInput()
			in.TranslatedText = "吾輩は猫である。名前はまだ無い。"
			got, err := svc.Update(context.Background(), tt.userID, tt.id, in)

			if tt.wantErr != nil {
				assertAPIError(t, err, tt.wantErr, tt.wantMsg)
				if updated != nil {
					t.Error("Update must not be called")
				}
				return
			}
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if got.TranslatedText != "吾輩は猫である。名前はまだ無い。" {
				t.Errorf("TranslatedText = %q", got.TranslatedText)
			}
			if got.TranslatorID != "owner" {
				t.Errorf("TranslatorID changed to %q", got.TranslatorID)
			}
			if !got.CreatedAt.Equal(existing.CreatedAt) || !got.UpdatedAt.Equal(testNow) {
				t.Errorf("timestamps = %v/%v", got.CreatedAt, got.UpdatedAt)
			}
		})
	}
}

func TestService_Get(t *testing.T) {
	svc := newTestService(&mockTranslationRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Translation, error) {
			if id == "tr-1" {
				return &model.Translation{ID: "tr-1"}, nil
			}
			return nil, nil
		},
	}, knownBooks())

	if got, err := svc.Get(context.Background(), "tr-1"); err != nil || got.ID != "tr-1" {
		t.Errorf("Get() = %+v, %v", got, err)
	}
	_, err := svc.Get(context.Background(), "nope")
	assertAPIError(t, err, model.ErrNotFound, "Translation not found")
}

func TestService_List_Sort(t *testing.T) {
	tests := []struct {
		name     string
		sort     model.TranslationSort
		wantSort model.TranslationSort
		wantErr  bool
	}{
		{"未指定は新しい順", "", model.TranslationSortNewest, false},
		{"newest", model.TranslationSortNewest, model.TranslationSortNewest, false},
		{"oldest", model.TranslationSortOldest, model.TranslationSortOldest, false},
		{"不正な値", "popular", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.TranslationFilter
			svc := newTestService(&mockTranslationRepo{
				listFn: func(_ context.Context, f model.TranslationFilter) ([]model.Translation, error) {
					got = f
					return []model.Translation{}, nil
				},
			}, knownBooks())

			_, err := svc.List(context.Background(), model.TranslationFilter{Sort: tt.sort, TargetLanguage: "ja"})
			if tt.wantErr {
				if !errors.Is(err, model.ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got.Sort != tt.wantSort || got.TargetLanguage != "ja" {
				t.Errorf("filter = %+v", got)
			}
		})
	}
}

func TestService_ListByBook(t *testing.T) {
	svc := newTestService(&mockTranslationRepo{
		listByBookFn: func(_ context.Context, bookID string) ([]model.Translation, error) {
			return []model.Translation{{ID: "a", BookID: bookID}}, nil
		},
	}, knownBooks())

	got, err := svc.ListByBook(context.Background(), "book-1")
	if err != nil || len(got) != 1 {
		t.Fatalf("ListByBook() = %v, %v", got, err)
	}

	_, err = svc.ListByBook(context.Background(), "book-404")
	assertAPIError(t, err, model.ErrNotFound, "Book not found")
}

// UUIDでないidはDBエラーではなく404として扱われる。
func TestService_MalformedIDsAreNotFound(t *testing.T) {
	svc := NewService(
		repository.NewPostgresTranslationRepo(nil),
		repository.NewPostgresBookRepo(nil),
		security.NewTextSanitizer(),
	)
	ctx := context.Background()

	tests := []struct {
		name    string
		call    func() error
		wantMsg string
	}{
		{"取得", func() error { _, err := svc.Get(ctx, "abc"); return err }, "Translation not found"},
		{"投稿先の書籍", func() error {
			in := validInput()
			in.BookID = "not-a-uuid"
			_, err := svc.Create(ctx, "6f1c1a9e-2b0c-4c1e-9b7a-3f0d2c5e8a41", in)
			return err
		}, "Book not found"},
		{"編集", func() error { _, err := svc.Update(ctx, "6f1c1a9e-2b0c-4c1e-9b7a-3f0d2c5e8a41", "abc", validInput()); return err }, "Translation not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || !errors.Is(err, model.ErrNotFound) {
				t.Fatalf("expected not found APIError, got %v", err)
			}
			if apiErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}
