package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/newsdeck/internal/model"
)

// FollowServiceInterface はフォローハンドラーが必要とするサービスインターフェース。
type FollowServiceInterface interface {
	Follow(ctx context.Context, userID string, req model.FollowRequest) (*model.UserFeed, error)
	Unfollow(ctx context.Context, userID, feedURL string) (int64, error)
	IsFollowing(ctx context.Context, userID, feedURL string) (bool, error)
	ListFollowed(ctx context.Context, userID string) ([]*model.UserFeed, error)
}

// FollowedItemsService はフォロー中フィードの記事集約を行う。
type FollowedItemsService interface {
	FollowedFeedItems(ctx context.Context, userID string) ([]model.FeedItem, error)
}

// FollowHandler はフォロー管理のHTTPハンドラー。
type FollowHandler struct {
	service FollowServiceInterface
	items   FollowedItemsService
	logger  *slog.Logger
}

// NewFollowHandler はFollowHandlerを生成する。
func NewFollowHandler(service FollowServiceInterface, items FollowedItemsService, logger *slog.Logger) *FollowHandler {
	return &FollowHandler{service: service, items: items, logger: logger}
}

type followRequest struct {
	FeedURL     string  `json:"feedUrl"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	FaviconURL  *string `json:"faviconUrl"`
	Category    *string `json:"category"`
	FeedType    string  `json:"feedType"`
}

type unfollowRequest struct {
	FeedURL string `json:"feedUrl"`
}

// userFeedResponse はフォロー中フィードのAPIレスポンス。
type userFeedResponse struct {
	ID              string         `json:"id"`
	FeedURL         string         `json:"feedUrl"`
	FeedTitle       *string        `json:"feedTitle"`
	FeedDescription *string        `json:"feedDescription"`
	FeedType        model.FeedType `json:"feedType"`
	FaviconURL      *string        `json:"faviconUrl"`
	Category        *string        `json:"category"`
	CreatedAt       time.Time      `json:"createdAt"`
}

func toUserFeedResponse(uf *model.UserFeed) userFeedResponse {
	return userFeedResponse{
		ID:              uf.ID,
		FeedURL:         uf.FeedURL,
		FeedTitle:       uf.FeedTitle,
		FeedDescription: uf.FeedDescription,
		FeedType:        uf.FeedType,
		FaviconURL:      uf.FaviconURL,
		Category:        uf.Category,
		CreatedAt:       uf.CreatedAt,
	}
}

// Follow はフィードをフォローする。
// POST /api/follow
func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req followRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	uf, err := h.service.Follow(r.Context(), userID, model.FollowRequest{
		FeedURL:     req.FeedURL,
		Title:       req.Title,
		Description: req.Description,
		FaviconURL:  req.FaviconURL,
		Category:    req.Category,
		FeedType:    model.FeedType(req.FeedType),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	title := uf.FeedURL
	if uf.FeedTitle != nil && *uf.FeedTitle != "" {
		title = *uf.FeedTitle
	}
	writeJSON(w, http.StatusCreated, apiResponse{
		Success: true,
		Message: fmt.Sprintf("'%s' をフォローしました。", title),
		Data:    map[string]string{"id": uf.ID},
	})
}

// Unfollow はフィードのフォローを解除する。フォローしていない場合は404を返す。
// POST /api/unfollow
func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req unfollowRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	removed, err := h.service.Unfollow(r.Context(), userID, req.FeedURL)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if removed == 0 {
		handleServiceError(w, r, h.logger, model.NewNotFollowingError(strings.TrimSpace(req.FeedURL)))
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "フォローを解除しました。"})
}

// Following はフォロー中のフィード一覧を返す。
// GET /api/following
func (h *FollowHandler) Following(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	feeds, err := h.service.ListFollowed(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	data := make([]userFeedResponse, 0, len(feeds))
	for _, uf := range feeds {
		data = append(data, toUserFeedResponse(uf))
	}
	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: fmt.Sprintf("%d件のフィードをフォロー中", len(data)),
		Data:    data,
	})
}

// FollowingItems はフォロー中フィードの最新記事を集約して返す。
// GET /api/following/items
func (h *FollowHandler) FollowingItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	items, err := h.items.FollowedFeedItems(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// Check はフィードのフォロー状態を返す。
// GET /api/following/check?feedUrl=
func (h *FollowHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	feedURL := strings.TrimSpace(r.URL.Query().Get("feedUrl"))
	if feedURL == "" {
		handleServiceError(w, r, h.logger, model.NewFeedURLRequiredError())
		return
	}

	following, err := h.service.IsFollowing(r.Context(), userID, feedURL)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedUrl": feedURL, "isFollowing": following})
}
