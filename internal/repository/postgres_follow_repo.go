package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/newsdeck/internal/model"
)

const userFeedColumns = `id, user_id, feed_url, feed_title, feed_description, feed_type,
		        favicon_url, category, is_active, created_at, updated_at, last_fetched_at`

// PostgresFollowRepo はPostgreSQLを使用したフォローリポジトリ。
type PostgresFollowRepo struct {
	db *sql.DB
}

// NewPostgresFollowRepo はPostgresFollowRepoを生成する。
func NewPostgresFollowRepo(db *sql.DB) *PostgresFollowRepo {
	return &PostgresFollowRepo{db: db}
}

// Exists はユーザーが指定フィードをフォローしているかを返す。
func (r *PostgresFollowRepo) Exists(ctx context.Context, userID, feedURL string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_feeds WHERE user_id = $1 AND feed_url = $2)`,
		userID, feedURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("フォロー状態の確認に失敗しました: %w", err)
	}
	return exists, nil
}

// ListByUser はユーザーのフォロー一覧をフォロー日時の新しい順に返す。
func (r *PostgresFollowRepo) ListByUser(ctx context.Context, userID string) ([]*model.UserFeed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userFeedColumns+`
		 FROM user_feeds WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("フォロー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var feeds []*model.UserFeed
	for rows.Next() {
		f, err := scanUserFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("フォロー行の読み取りに失敗しました: %w", err)
		}
		feeds = append(feeds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フォロー一覧の走査に失敗しました: %w", err)
	}
	return feeds, nil
}

// Create はフォローを作成する。(user_id, feed_url) が重複する場合はErrDuplicateを返す。
func (r *PostgresFollowRepo) Create(ctx context.Context, f *model.UserFeed) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_feeds (`+userFeedColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		f.ID, f.UserID, f.FeedURL, f.FeedTitle, f.FeedDescription, string(f.FeedType),
		f.FaviconURL, f.Category, f.IsActive, f.CreatedAt, f.UpdatedAt, f.LastFetchedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("フォローの作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserAndURL はフォローを削除し、削除件数を返す。
func (r *PostgresFollowRepo) DeleteByUserAndURL(ctx context.Context, userID, feedURL string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_feeds WHERE user_id = $1 AND feed_url = $2`,
		userID, feedURL,
	)
	if err != nil {
		return 0, fmt.Errorf("フォローの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return n, nil
}

// FeedURLsByUser はユーザーがフォローしているフィードURLの一覧を返す。
func (r *PostgresFollowRepo) FeedURLsByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT feed_url FROM user_feeds WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("フォロー中URLの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("フォロー中URLの読み取りに失敗しました: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フォロー中URLの走査に失敗しました: %w", err)
	}
	return urls, nil
}

func scanUserFeed(rows *sql.Rows) (*model.UserFeed, error) {
	f := &model.UserFeed{}
	var (
		title, description, favicon, category sql.NullString
		feedType                              string
		lastFetchedAt                         sql.NullTime
	)
	err := rows.Scan(
		&f.ID, &f.UserID, &f.FeedURL, &title, &description, &feedType,
		&favicon, &category, &f.IsActive, &f.CreatedAt, &f.UpdatedAt, &lastFetchedAt,
	)
	if err != nil {
		return nil, err
	}
	f.FeedTitle = stringPtr(title)
	f.FeedDescription = stringPtr(description)
	f.FeedType = model.FeedType(feedType)
	f.FaviconURL = stringPtr(favicon)
	f.Category = stringPtr(category)
	f.LastFetchedAt = timePtr(lastFetchedAt)
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return f, nil
}

var _ FollowRepository = (*PostgresFollowRepo)(nil)
