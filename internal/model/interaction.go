package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ArticleInteraction はユーザーと外部記事の間の状態（保存・既読・メモ）を表す。
// 記事はURLで識別され、(UserID, ArticleURLHash) の組で一意となる。
type ArticleInteraction struct {
	ID             string
	UserID         string
	ArticleURL     string
	ArticleURLHash string
	Title          *string
	Description    *string
	ThumbnailURL   *string
	SiteName       *string
	IsSaved        bool
	SavedAt        *time.Time
	IsRead         bool
	ReadAt         *time.Time
	Memo           *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ArticleSnapshot は一覧表示用の記事情報の部分更新を表す。
// nilのフィールドは既存の値を維持する。
type ArticleSnapshot struct {
	URL          string
	Title        *string
	Description  *string
	ThumbnailURL *string
	SiteName     *string
}

// MergeSnapshot はbaseにpatchの非nilフィールドを上書きした値を返す。
// baseは変更しない。
func MergeSnapshot(base ArticleInteraction, patch ArticleSnapshot) ArticleInteraction {
	merged := base
	if patch.Title != nil {
		merged.Title = copyString(patch.Title)
	}
	if patch.Description != nil {
		merged.Description = copyString(patch.Description)
	}
	if patch.ThumbnailURL != nil {
		merged.ThumbnailURL = copyString(patch.ThumbnailURL)
	}
	if patch.SiteName != nil {
		merged.SiteName = copyString(patch.SiteName)
	}
	return merged
}

func copyString(s *string) *string {
	v := *s
	return &v
}

// ArticleURLHash は記事URLのSHA-256ハッシュ（16進数64文字）を返す。
func ArticleURLHash(articleURL string) string {
	sum := sha256.Sum256([]byte(articleURL))
	return hex.EncodeToString(sum[:])
}
