package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/readshare/internal/model"
	"github.com/hitoshi/readshare/internal/translation"
)

// TranslationServiceInterface は翻訳ハンドラーが必要とするサービスインターフェース。
type TranslationServiceInterface interface {
	List(ctx context.Context, filter model.TranslationFilter) ([]model.Translation, error)
	ListByBook(ctx context.Context, bookID string) ([]model.Translation, error)
	Get(ctx context.Context, id string) (*model.Translation, error)
	Create(ctx context.Context, userID string, in translation.Input) (*model.Translation, error)
	Update(ctx context.Context, userID, id string, in translation.Input) (*model.Translation, error)
}

// TranslationHandler は翻訳のHTTPハンドラー。
type TranslationHandler struct {
	service TranslationServiceInterface
}

// NewTranslationHandler はTranslationHandlerを生成する。
func NewTranslationHandler(service TranslationServiceInterface) *TranslationHandler {
	return &TranslationHandler{service: service}
}

// translationBookResponse は翻訳に付随する書籍の要約。
type translationBookResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	CoverImage string `json:"coverImage,omitempty"`
}

// translatorResponse は翻訳者の要約。
type translatorResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// translationResponse は翻訳のAPIレスポンス。
type translationResponse struct {
	ID             string                  `json:"id"`
	BookID         string                  `json:"bookId"`
	OriginalText   string                  `json:"originalText"`
	TranslatedText string                  `json:"translatedText"`
	SourceLanguage string                  `json:"sourceLanguage"`
	TargetLanguage string                  `json:"targetLanguage"`
	Context        string                  `json:"context,omitempty"`
	Chapter        string                  `json:"chapter,omitempty"`
	PageNumber     *int                    `json:"pageNumber,omitempty"`
	BookmarksCount int                     `json:"bookmarksCount"`
	Book           translationBookResponse `json:"book"`
	Translator     translatorResponse      `json:"translator"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

// translationRequest は翻訳の投稿・編集リクエストのボディ。
type translationRequest struct {
	BookID         string `json:"bookId"`
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Context        string `json:"context"`
	Chapter        string `json:"chapter"`
	PageNumber     *int   `json:"pageNumber"`
}

func (req translationRequest) toInput() translation.Input {
	return translation.Input{
		BookID:         req.BookID,
		OriginalText:   req.OriginalText,
		TranslatedText: req.TranslatedText,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Context:        req.Context,
		Chapter:        req.Chapter,
		PageNumber:     req.PageNumber,
	}
}

// ListTranslations はフィード用の翻訳一覧を返す。
// GET /api/translations?bookId=&sourceLanguage=&targetLanguage=&q=&sort=newest|oldest
func (h *TranslationHandler) ListTranslations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.TranslationFilter{
		BookID:         q.Get("bookId"),
		SourceLanguage: q.Get("sourceLanguage"),
		TargetLanguage: q.Get("targetLanguage"),
		Query:          q.Get("q"),
		Sort:           model.TranslationSort(q.Get("sort")),
	}

	translations, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTranslationResponses(translations))
}

// ListBookTranslations は書籍の翻訳一覧を返す。
// GET /api/translations/book/{bookId}
func (h *TranslationHandler) ListBookTranslations(w http.ResponseWriter, r *http.Request) {
	translations, err := h.service.ListByBook(r.Context(), chi.URLParam(r, "bookId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTranslationResponses(translations))
}

// GetTranslation は翻訳を1件返す。
// GET /api/translations/{id}
func (h *TranslationHandler) GetTranslation(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTranslationResponse(t))
}

// CreateTranslation は翻訳を投稿する。
// POST /api/translations
func (h *TranslationHandler) CreateTranslation(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req translationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	t, err := h.service.Create(r.Context(), user.ID, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTranslationResponse(t))
}

// UpdateTranslation は自分の翻訳を編集する。
// PUT /api/translations/{id}
func (h *TranslationHandler) UpdateTranslation(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req translationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	t, err := h.service.Update(r.Context(), user.ID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTranslationResponse(t))
}

func toTranslationResponse(t *model.Translation) translationResponse {
	return translationResponse{
		ID:             t.ID,
		BookID:         t.BookID,
		OriginalText:   t.OriginalText,
		TranslatedText: t.TranslatedText,
		SourceLanguage: t.SourceLanguage,
		TargetLanguage: t.TargetLanguage,
		Context:        t.Context,
		Chapter:        t.Chapter,
		PageNumber:     t.PageNumber,
		BookmarksCount: t.BookmarksCount,
		Book: translationBookResponse{
			ID:         t.BookID,
			Title:      t.BookTitle,
			Author:     t.BookAuthor,
			CoverImage: t.BookCoverImage,
		},
		Translator: translatorResponse{
			ID:   t.TranslatorID,
			Name: t.TranslatorName,
		},
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// toTranslationResponses は空の場合もnullではなく空配列を返す。
func toTranslationResponses(ts []model.Translation) []translationResponse {
	resp := make([]translationResponse, 0, len(ts))
	for i := range ts {
		resp = append(resp, toTranslationResponse(&ts[i]))
	}
	return resp
}
