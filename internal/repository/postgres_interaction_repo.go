package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/newsdeck/internal/model"
)

const interactionColumns = `id, user_id, article_url, article_url_hash, title, description,
		        thumbnail_url, site_name, is_saved, saved_at, is_read, read_at, memo,
		        created_at, updated_at`

// PostgresInteractionRepo はPostgreSQLを使用した記事状態のリポジトリ。
type PostgresInteractionRepo struct {
	db *sql.DB
}

// NewPostgresInteractionRepo はPostgresInteractionRepoを生成する。
func NewPostgresInteractionRepo(db *sql.DB) *PostgresInteractionRepo {
	return &PostgresInteractionRepo{db: db}
}

// FindByUserAndURL はユーザーと記事URLで状態を取得する。見つからない場合はnilを返す。
func (r *PostgresInteractionRepo) FindByUserAndURL(ctx context.Context, userID, articleURL string) (*model.ArticleInteraction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+interactionColumns+`
		 FROM user_article_interactions
		 WHERE user_id = $1 AND article_url_hash = $2`,
		userID, model.ArticleURLHash(articleURL),
	)
	if err != nil {
		return nil, fmt.Errorf("記事状態の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("記事状態の取得に失敗しました: %w", err)
		}
		return nil, nil
	}
	ai, err := scanInteraction(rows)
	if err != nil {
		return nil, fmt.Errorf("記事状態の読み取りに失敗しました: %w", err)
	}
	return ai, nil
}

// Save は (user_id, article_url_hash) をキーに状態をUPSERTする。
func (r *PostgresInteractionRepo) Save(ctx context.Context, ai *model.ArticleInteraction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_article_interactions (`+interactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (user_id, article_url_hash) DO UPDATE SET
		     title = EXCLUDED.title,
		     description = EXCLUDED.description,
		     thumbnail_url = EXCLUDED.thumbnail_url,
		     site_name = EXCLUDED.site_name,
		     is_saved = EXCLUDED.is_saved,
		     saved_at = EXCLUDED.saved_at,
		     is_read = EXCLUDED.is_read,
		     read_at = EXCLUDED.read_at,
		     memo = EXCLUDED.memo,
		     updated_at = EXCLUDED.updated_at`,
		ai.ID, ai.UserID, ai.ArticleURL, ai.ArticleURLHash, ai.Title, ai.Description,
		ai.ThumbnailURL, ai.SiteName, ai.IsSaved, ai.SavedAt, ai.IsRead, ai.ReadAt, ai.Memo,
		ai.CreatedAt, ai.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("記事状態の保存に失敗しました: %w", err)
	}
	return nil
}

// ListSaved は保存済みの記事を保存日時の新しい順に返す。
func (r *PostgresInteractionRepo) ListSaved(ctx context.Context, userID string) ([]*model.ArticleInteraction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+interactionColumns+`
		 FROM user_article_interactions
		 WHERE user_id = $1 AND is_saved = TRUE
		 ORDER BY saved_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("保存済み記事の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var list []*model.ArticleInteraction
	for rows.Next() {
		ai, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("保存済み記事の読み取りに失敗しました: %w", err)
		}
		list = append(list, ai)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("保存済み記事の走査に失敗しました: %w", err)
	}
	return list, nil
}

func scanInteraction(rows *sql.Rows) (*model.ArticleInteraction, error) {
	ai := &model.ArticleInteraction{}
	var (
		title, description, thumbnail, siteName, memo sql.NullString
		savedAt, readAt                               sql.NullTime
	)
	err := rows.Scan(
		&ai.ID, &ai.UserID, &ai.ArticleURL, &ai.ArticleURLHash, &title, &description,
		&thumbnail, &siteName, &ai.IsSaved, &savedAt, &ai.IsRead, &readAt, &memo,
		&ai.CreatedAt, &ai.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ai.Title = stringPtr(title)
	ai.Description = stringPtr(description)
	ai.ThumbnailURL = stringPtr(thumbnail)
	ai.SiteName = stringPtr(siteName)
	ai.Memo = stringPtr(memo)
	ai.SavedAt = timePtr(savedAt)
	ai.ReadAt = timePtr(readAt)
	ai.CreatedAt = ai.CreatedAt.UTC()
	ai.UpdatedAt = ai.UpdatedAt.UTC()
	return ai, nil
}

var _ InteractionRepository = (*PostgresInteractionRepo)(nil)
