package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/readshare/internal/bookmark"
	"github.com/hitoshi/readshare/internal/model"
)

// BookmarkServiceInterface はブックマークハンドラーが必要とするサービスインターフェース。
type BookmarkServiceInterface interface {
	List(ctx context.Context, userID string) ([]model.Bookmark, error)
	// Add は作成した場合にtrue、既存のブックマークを返した場合にfalseを返す。
	Add(ctx context.Context, userID string, in bookmark.AddInput) (*model.Bookmark, bool, error)
	Remove(ctx context.Context, userID, bookmarkID string) error
}

// BookmarkHandler はブックマークのHTTPハンドラー。
type BookmarkHandler struct {
	service BookmarkServiceInterface
}

// NewBookmarkHandler はBookmarkHandlerを生成する。
func NewBookmarkHandler(service BookmarkServiceInterface) *BookmarkHandler {
	return &BookmarkHandler{service: service}
}

// bookmarkResponse はブックマークのAPIレスポンス。
type bookmarkResponse struct {
	ID             string    `json:"id"`
	BookID         string    `json:"bookId,omitempty"`
	TranslationID  string    `json:"translationId,omitempty"`
	BookTitle      string    `json:"bookTitle,omitempty"`
	OriginalText   string    `json:"originalText,omitempty"`
	TranslatedText string    `json:"translatedText,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type addBookmarkRequest struct {
	BookID        string `json:"bookId"`
	TranslationID string `json:"translationId"`
}

// ListBookmarks は自分のブックマーク一覧を返す。
// GET /api/bookmarks
func (h *BookmarkHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	bookmarks, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]bookmarkResponse, 0, len(bookmarks))
	for i := range bookmarks {
		resp = append(resp, toBookmarkResponse(&bookmarks[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddBookmark は書籍または翻訳をブックマークする。
// 新規作成時は201、既にブックマーク済みの場合は既存のものを200で返す。
// POST /api/bookmarks
func (h *BookmarkHandler) AddBookmark(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req addBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	bm, created, err := h.service.Add(r.Context(), user.ID, bookmark.AddInput{
		BookID:        req.BookID,
		TranslationID: req.TranslationID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toBookmarkResponse(bm))
}

// RemoveBookmark は自分のブックマークを削除する。
// DELETE /api/bookmarks/{id}
func (h *BookmarkHandler) RemoveBookmark(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toBookmarkResponse(b *model.Bookmark) bookmarkResponse {
	return bookmarkResponse{
		ID:             b.ID,
		BookID:         b.BookID,
		TranslationID:  b.TranslationID,
		BookTitle:      b.BookTitle,
		OriginalText:   b.OriginalText,
		TranslatedText: b.TranslatedText,
		CreatedAt:      b.CreatedAt,
	}
}
