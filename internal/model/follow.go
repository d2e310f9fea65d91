package model

import "time"

// UserFeed はユーザーがフォローしているフィードを表す。
// (UserID, FeedURL) の組で一意となる。
type UserFeed struct {
	ID              string
	UserID          string
	FeedURL         string
	FeedTitle       *string
	FeedDescription *string
	FeedType        FeedType
	FaviconURL      *string
	Category        *string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastFetchedAt   *time.Time
}

// FollowRequest はフィードのフォロー要求を表す。
type FollowRequest struct {
	FeedURL     string
	Title       *string
	Description *string
	FaviconURL  *string
	Category    *string
	FeedType    FeedType // 未指定の場合はRSS
}
