package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/newsdeck/internal/model"
)

const catalogColumns = `id, feed_url, site_url, title, description, category,
		        favicon_url, subscriber_count, created_at`

// PostgresCatalogRepo はPostgreSQLを使用した人気フィードカタログのリポジトリ。
type PostgresCatalogRepo struct {
	db *sql.DB
}

// NewPostgresCatalogRepo はPostgresCatalogRepoを生成する。
func NewPostgresCatalogRepo(db *sql.DB) *PostgresCatalogRepo {
	return &PostgresCatalogRepo{db: db}
}

// Search はタイトル・説明・カテゴリの部分一致で検索し、購読者数の多い順に返す。
func (r *PostgresCatalogRepo) Search(ctx context.Context, query string) ([]*model.CatalogEntry, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	return r.query(ctx, "カタログの検索",
		`SELECT `+catalogColumns+`
		 FROM popular_feeds
		 WHERE title ILIKE $1 OR description ILIKE $1 OR category ILIKE $1
		 ORDER BY subscriber_count DESC, title ASC`,
		pattern,
	)
}

// FindByCategory はカテゴリで検索し、購読者数の多い順に返す。
func (r *PostgresCatalogRepo) FindByCategory(ctx context.Context, category string) ([]*model.CatalogEntry, error) {
	return r.query(ctx, "カテゴリによるカタログの取得",
		`SELECT `+catalogColumns+`
		 FROM popular_feeds
		 WHERE LOWER(category) = LOWER($1)
		 ORDER BY subscriber_count DESC, title ASC`,
		strings.TrimSpace(category),
	)
}

// ListAll は全件を購読者数の多い順に返す。
func (r *PostgresCatalogRepo) ListAll(ctx context.Context) ([]*model.CatalogEntry, error) {
	return r.query(ctx, "カタログ一覧の取得",
		`SELECT `+catalogColumns+`
		 FROM popular_feeds
		 ORDER BY subscriber_count DESC, title ASC`,
	)
}

// DistinctCategories はカタログに登録されているカテゴリの一覧を返す。
func (r *PostgresCatalogRepo) DistinctCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM popular_feeds
		 WHERE category IS NOT NULL AND category <> ''
		 ORDER BY category`,
	)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("カテゴリの読み取りに失敗しました: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の走査に失敗しました: %w", err)
	}
	return categories, nil
}

func (r *PostgresCatalogRepo) query(ctx context.Context, op, q string, args ...any) ([]*model.CatalogEntry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%sに失敗しました: %w", op, err)
	}
	defer rows.Close()

	var entries []*model.CatalogEntry
	for rows.Next() {
		e := &model.CatalogEntry{}
		var siteURL, description, category, favicon sql.NullString
		if err := rows.Scan(
			&e.ID, &e.FeedURL, &siteURL, &e.Title, &description, &category,
			&favicon, &e.SubscriberCount, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("カタログ行の読み取りに失敗しました: %w", err)
		}
		e.SiteURL = stringPtr(siteURL)
		e.Description = stringPtr(description)
		e.Category = stringPtr(category)
		e.FaviconURL = stringPtr(favicon)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%sの走査に失敗しました: %w", op, err)
	}
	return entries, nil
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ CatalogRepository = (*PostgresCatalogRepo)(nil)
