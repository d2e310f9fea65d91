// Package follow はフィードのフォロー管理のドメインロジックを提供する。
package follow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsdeck/internal/model"
	"github.com/hitoshi/newsdeck/internal/repository"
)

// Service はフォロー管理のサービス層。
type Service struct {
	repo   repository.FollowRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.FollowRepository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Follow はフィードをフォローする。
// 既にフォローしている場合は ALREADY_FOLLOWING エラーを返す。FeedType未指定の場合はRSSとする。
func (s *Service) Follow(ctx context.Context, userID string, req model.FollowRequest) (*model.UserFeed, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	feedURL := strings.TrimSpace(req.FeedURL)
	if feedURL == "" {
		return nil, model.NewFeedURLRequiredError()
	}
	if err := validateFeedURL(feedURL); err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, userID, feedURL)
	if err != nil {
		return nil, fmt.Errorf("フォロー状態の確認に失敗しました: %w", err)
	}
	if exists {
		return nil, model.NewAlreadyFollowingError(feedURL)
	}

	feedType := req.FeedType
	if feedType == "" {
		feedType = model.FeedTypeRSS
	}

	now := s.now().UTC()
	uf := &model.UserFeed{
		ID:              uuid.New().String(),
		UserID:          userID,
		FeedURL:         feedURL,
		FeedTitle:       req.Title,
		FeedDescription: req.Description,
		FeedType:        feedType,
		FaviconURL:      req.FaviconURL,
		Category:        req.Category,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, uf); err != nil {
		// Existsの確認後に別リクエストが先に作成した場合
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewAlreadyFollowingError(feedURL)
		}
		return nil, fmt.Errorf("フォローの作成に失敗しました: %w", err)
	}

	s.logger.Info("フィードをフォローしました",
		slog.String("user_id", userID),
		slog.String("feed_url", feedURL),
		slog.String("feed_type", string(feedType)),
	)
	return uf, nil
}

// Unfollow はフォローを解除し、削除件数を返す。
func (s *Service) Unfollow(ctx context.Context, userID, feedURL string) (int64, error) {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return 0, model.NewFeedURLRequiredError()
	}
	if userID == "" {
		return 0, model.NewUnauthorizedError()
	}

	n, err := s.repo.DeleteByUserAndURL(ctx, userID, feedURL)
	if err != nil {
		return 0, fmt.Errorf("フォローの解除に失敗しました: %w", err)
	}

	if n == 0 {
		s.logger.Warn("フォロー解除対象のフィードが見つかりません",
			slog.String("user_id", userID),
			slog.String("feed_url", feedURL),
		)
	} else {
		s.logger.Info("フィードのフォローを解除しました",
			slog.String("user_id", userID),
			slog.String("feed_url", feedURL),
		)
	}
	return n, nil
}

// IsFollowing はユーザーが指定フィードをフォローしているかを返す。
func (s *Service) IsFollowing(ctx context.Context, userID, feedURL string) (bool, error) {
	if userID == "" || strings.TrimSpace(feedURL) == "" {
		return false, nil
	}
	ok, err := s.repo.Exists(ctx, userID, strings.TrimSpace(feedURL))
	if err != nil {
		return false, fmt.Errorf("フォロー状態の確認に失敗しました: %w", err)
	}
	return ok, nil
}

// ListFollowed はフォロー一覧をフォロー日時の新しい順に返す。
func (s *Service) ListFollowed(ctx context.Context, userID string) ([]*model.UserFeed, error) {
	if userID == "" {
		return []*model.UserFeed{}, nil
	}
	feeds, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー一覧の取得に失敗しました: %w", err)
	}
	if feeds == nil {
		feeds = []*model.UserFeed{}
	}
	return feeds, nil
}

// FollowedURLs はフォロー中のフィードURLの集合を返す。
// 一覧表示でisFollowedを付与するための一括照会に使用する。
func (s *Service) FollowedURLs(ctx context.Context, userID string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if userID == "" {
		return set, nil
	}
	urls, err := s.repo.FeedURLsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー中URLの取得に失敗しました: %w", err)
	}
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set, nil
}

func validateFeedURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return model.NewInvalidURLError("URLを解析できません")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return model.NewInvalidURLError("スキームは http または https である必要があります")
	}
	if u.Host == "" {
		return model.NewInvalidURLError("ホスト名がありません")
	}
	return nil
}
