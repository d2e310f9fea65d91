package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/newsdeck/internal/model"
)

// InteractionServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type InteractionServiceInterface interface {
	ToggleSave(ctx context.Context, userID string, snap model.ArticleSnapshot) (bool, error)
	MarkAsRead(ctx context.Context, userID string, snap model.ArticleSnapshot) error
	UpdateMemo(ctx context.Context, userID, memo string, snap model.ArticleSnapshot) error
	ListSaved(ctx context.Context, userID string) ([]*model.ArticleInteraction, error)
}

// ArticleHandler は記事の保存・既読・メモのHTTPハンドラー。
type ArticleHandler struct {
	service InteractionServiceInterface
	logger  *slog.Logger
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(service InteractionServiceInterface, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{service: service, logger: logger}
}

type articleRequest struct {
	URL          string  `json:"url"`
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	SiteName     *string `json:"siteName"`
}

func (a articleRequest) snapshot() model.ArticleSnapshot {
	return model.ArticleSnapshot{
		URL:          a.URL,
		Title:        a.Title,
		Description:  a.Description,
		ThumbnailURL: a.ThumbnailURL,
		SiteName:     a.SiteName,
	}
}

type memoRequest struct {
	articleRequest
	Memo string `json:"memo"`
}

type savedArticleResponse struct {
	URL          string     `json:"url"`
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	ThumbnailURL *string    `json:"thumbnailUrl"`
	SiteName     *string    `json:"siteName"`
	SavedAt      *time.Time `json:"savedAt"`
	IsRead       bool       `json:"isRead"`
	Memo         *string    `json:"memo"`
}

// Save は記事の保存状態を反転する。
// POST /api/articles/save
func (h *ArticleHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req articleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	saved, err := h.service.ToggleSave(r.Context(), userID, req.snapshot())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "isSaved": saved})
}

// Read は記事を既読にする。
// POST /api/articles/read
func (h *ArticleHandler) Read(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req articleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.MarkAsRead(r.Context(), userID, req.snapshot()); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Memo は記事のメモを保存する。
// POST /api/articles/memo
func (h *ArticleHandler) Memo(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req memoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.UpdateMemo(r.Context(), userID, req.Memo, req.snapshot()); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Saved は保存済みの記事一覧を返す。
// GET /api/saved
func (h *ArticleHandler) Saved(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	saved, err := h.service.ListSaved(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	articles := make([]savedArticleResponse, 0, len(saved))
	for _, ia := range saved {
		articles = append(articles, savedArticleResponse{
			URL:          ia.ArticleURL,
			Title:        ia.Title,
			Description:  ia.Description,
			ThumbnailURL: ia.ThumbnailURL,
			SiteName:     ia.SiteName,
			SavedAt:      ia.SavedAt,
			IsRead:       ia.IsRead,
			Memo:         ia.Memo,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": articles, "count": len(articles)})
}
