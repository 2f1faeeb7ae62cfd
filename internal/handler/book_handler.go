package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/readshare/internal/book"
	"github.com/hitoshi/readshare/internal/model"
)

// BookServiceInterface は書籍ハンドラーが必要とするサービスインターフェース。
type BookServiceInterface interface {
	List(ctx context.Context) ([]model.Book, error)
	Get(ctx context.Context, id string) (*model.BookDetail, error)
	Create(ctx context.Context, userID string, in book.CreateInput) (*model.Book, error)
}

// BookHandler は書籍のHTTPハンドラー。
type BookHandler struct {
	service BookServiceInterface
}

// NewBookHandler はBookHandlerを生成する。
func NewBookHandler(service BookServiceInterface) *BookHandler {
	return &BookHandler{service: service}
}

// bookResponse は書籍のAPIレスポンス。
type bookResponse struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Author            string    `json:"author"`
	Description       string    `json:"description"`
	Language          string    `json:"language"`
	CoverImage        string    `json:"coverImage,omitempty"`
	CreatedBy         string    `json:"createdBy"`
	TranslationsCount int       `json:"translationsCount"`
	BookmarksCount    int       `json:"bookmarksCount"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// bookDetailResponse は翻訳一覧を含む書籍のAPIレスポンス。
type bookDetailResponse struct {
	bookResponse
	Translations []translationResponse `json:"translations"`
}

type createBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Language    string `json:"language"`
	CoverImage  string `json:"coverImage"`
}

// ListBooks は書籍一覧を新しい順に返す。
// GET /api/books
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]bookResponse, 0, len(books))
	for i := range books {
		resp = append(resp, toBookResponse(&books[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetBook は書籍とその翻訳一覧を返す。
// GET /api/books/{id}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := bookDetailResponse{
		bookResponse: toBookResponse(&detail.Book),
		Translations: toTranslationResponses(detail.Translations),
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateBook は書籍を登録する。
// POST /api/books
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	b, err := h.service.Create(r.Context(), user.ID, book.CreateInput{
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		Language:    req.Language,
		CoverImage:  req.CoverImage,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookResponse(b))
}

func toBookResponse(b *model.Book) bookResponse {
	return bookResponse{
		ID:                b.ID,
		Title:             b.Title,
		Author:            b.Author,
		Description:       b.Description,
		Language:          b.Language,
		CoverImage:        b.CoverImage,
		CreatedBy:         b.CreatedBy,
		TranslationsCount: b.TranslationsCount,
		BookmarksCount:    b.BookmarksCount,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}
