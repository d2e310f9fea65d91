// Package interaction は記事の保存・既読・メモのドメインロジックを提供する。
package interaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsdeck/internal/model"
	"github.com/hitoshi/newsdeck/internal/repository"
)

// Sanitizer はユーザー入力のテキストをプレーンテキスト化する。
type Sanitizer interface {
	Clean(raw string) string
	CleanPtr(raw *string) *string
}

// Service は記事ごとのユーザー状態を管理するサービス層。
// 記事は (userID, sha256(url)) の組で識別する。
type Service struct {
	repo      repository.InteractionRepository
	sanitizer Sanitizer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.InteractionRepository, sanitizer Sanitizer, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
	}
}

// ToggleSave は保存状態を反転し、反転後の状態を返す。
// スナップショットの非nilフィールドは既存の値を上書きする。
func (s *Service) ToggleSave(ctx context.Context, userID string, snap model.ArticleSnapshot) (bool, error) {
	current, err := s.load(ctx, userID, snap)
	if err != nil {
		return false, err
	}

	next := s.merge(*current, snap)
	next.IsSaved = !current.IsSaved
	if next.IsSaved {
		now := s.now().UTC()
		next.SavedAt = &now
	} else {
		next.SavedAt = nil
	}

	if err := s.save(ctx, &next); err != nil {
		return false, err
	}

	s.logger.Info("記事の保存状態を変更しました",
		slog.String("user_id", userID),
		slog.String("article_url_hash", next.ArticleURLHash),
		slog.Bool("is_saved", next.IsSaved),
	)
	return next.IsSaved, nil
}

// MarkAsRead は記事を既読にする。既に既読の場合は何も書き込まない。
func (s *Service) MarkAsRead(ctx context.Context, userID string, snap model.ArticleSnapshot) error {
	current, err := s.load(ctx, userID, snap)
	if err != nil {
		return err
	}
	if current.IsRead {
		return nil
	}

	next := s.merge(*current, snap)
	now := s.now().UTC()
	next.IsRead = true
	next.ReadAt = &now

	return s.save(ctx, &next)
}

// UpdateMemo は記事のメモを置き換える。
func (s *Service) UpdateMemo(ctx context.Context, userID, memo string, snap model.ArticleSnapshot) error {
	current, err := s.load(ctx, userID, snap)
	if err != nil {
		return err
	}

	next := s.merge(*current, snap)
	cleaned := s.sanitizer.Clean(memo)
	next.Memo = &cleaned

	return s.save(ctx, &next)
}

// ListSaved は保存済みの記事を保存日時の新しい順に返す。
func (s *Service) ListSaved(ctx context.Context, userID string) ([]*model.ArticleInteraction, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}

	saved, err := s.repo.ListSaved(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("保存済み記事の取得に失敗しました: %w", err)
	}
	if saved == nil {
		saved = []*model.ArticleInteraction{}
	}
	return saved, nil
}

// load は既存の状態を取得する。存在しない場合は未保存・未読の新しい状態を返す。
func (s *Service) load(ctx context.Context, userID string, snap model.ArticleSnapshot) (*model.ArticleInteraction, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	articleURL := strings.TrimSpace(snap.URL)
	if articleURL == "" {
		return nil, model.NewArticleURLRequiredError()
	}

	existing, err := s.repo.FindByUserAndURL(ctx, userID, articleURL)
	if err != nil {
		return nil, fmt.Errorf("記事状態の取得に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now().UTC()
	return &model.ArticleInteraction{
		ID:             uuid.New().String(),
		UserID:         userID,
		ArticleURL:     articleURL,
		ArticleURLHash: model.ArticleURLHash(articleURL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *Service) merge(base model.ArticleInteraction, snap model.ArticleSnapshot) model.ArticleInteraction {
	return model.MergeSnapshot(base, model.ArticleSnapshot{
		URL:          snap.URL,
		Title:        s.sanitizer.CleanPtr(snap.Title),
		Description:  s.sanitizer.CleanPtr(snap.Description),
		ThumbnailURL: snap.ThumbnailURL,
		SiteName:     s.sanitizer.CleanPtr(snap.SiteName),
	})
}

func (s *Service) save(ctx context.Context, ia *model.ArticleInteraction) error {
	ia.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, ia); err != nil {
		return fmt.Errorf("記事状態の保存に失敗しました: %w", err)
	}
	return nil
}
