package model

import "time"

// Video is a published video record. The upload pipeline that creates these
// lives outside this service; the identity layer only reads them to resolve
// watch history.
type Video struct {
	ID           string    `json:"id"           db:"id"`
	OwnerID      string    `json:"ownerId"      db:"owner_id"`
	Title        string    `json:"title"        db:"title"`
	Description  string    `json:"description"  db:"description"`
	VideoURL     string    `json:"videoUrl"     db:"video_url"`
	ThumbnailURL string    `json:"thumbnailUrl" db:"thumbnail_url"`
	Duration     int64     `json:"duration"     db:"duration"` // seconds
	Views        int64     `json:"views"        db:"views"`
	CreatedAt    time.Time `json:"createdAt"    db:"created_at"`
}

// VideoOwner is the restricted owner projection embedded in watch-history
// entries: just enough to render an attribution line.
type VideoOwner struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl"`
}

// WatchHistoryEntry is one resolved element of a user's watch history:
// the full video record with its owner denormalized one level deep.
type WatchHistoryEntry struct {
	Video
	Owner VideoOwner `json:"owner"`
}
