// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/newsdeck/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
var ErrDuplicate = errors.New("レコードが既に存在します")

// FollowRepository はフォロー中フィードの永続化インターフェース。
type FollowRepository interface {
	// Exists はユーザーが指定フィードをフォローしているかを返す。
	Exists(ctx context.Context, userID, feedURL string) (bool, error)

	// ListByUser はユーザーのフォロー一覧をフォロー日時の新しい順に返す。
	ListByUser(ctx context.Context, userID string) ([]*model.UserFeed, error)

	// Create はフォローを作成する。(user_id, feed_url) が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, feed *model.UserFeed) error

	// DeleteByUserAndURL はフォローを削除し、削除件数を返す。
	DeleteByUserAndURL(ctx context.Context, userID, feedURL string) (int64, error)

	// FeedURLsByUser はユーザーがフォローしているフィードURLの一覧を返す。
	FeedURLsByUser(ctx context.Context, userID string) ([]string, error)
}

// CatalogRepository は人気フィードカタログの参照インターフェース。
type CatalogRepository interface {
	// Search はタイトル・説明・カテゴリの部分一致（大文字小文字を区別しない）で検索する。
	Search(ctx context.Context, query string) ([]*model.CatalogEntry, error)

	// FindByCategory はカテゴリ（大文字小文字を区別しない）で検索する。
	FindByCategory(ctx context.Context, category string) ([]*model.CatalogEntry, error)

	// ListAll は全件を購読者数の多い順に返す。
	ListAll(ctx context.Context) ([]*model.CatalogEntry, error)

	// DistinctCategories はカタログに登録されているカテゴリの一覧を返す。
	DistinctCategories(ctx context.Context) ([]string, error)
}

// InteractionRepository は記事ごとのユーザー状態の永続化インターフェース。
type InteractionRepository interface {
	// FindByUserAndURL はユーザーと記事URLで状態を取得する。見つからない場合はnilを返す。
	FindByUserAndURL(ctx context.Context, userID, articleURL string) (*model.ArticleInteraction, error)

	// Save は (user_id, article_url_hash) をキーに状態をUPSERTする。
	Save(ctx context.Context, interaction *model.ArticleInteraction) error

	// ListSaved は保存済みの記事を保存日時の新しい順に返す。
	ListSaved(ctx context.Context, userID string) ([]*model.ArticleInteraction, error)
}
