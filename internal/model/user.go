// Package model defines the data structures used throughout the application.
package model

import "time"

// User is the persisted identity record.
//
// PasswordHash and RefreshToken are tagged `json:"-"` as a last line of
// defence, but the real contract lives in the repository: every
// read-for-output path returns a PublicUser projection, never a full User.
// Only the auth flows (password verification, refresh rotation) load the
// full record.
//
// Username and Email are stored lowercase and are unique; the repository
// normalizes them on create so case-insensitive lookups are plain equality.
type User struct {
	ID            string    `json:"id"            db:"id"`
	Username      string    `json:"username"      db:"username"`
	Email         string    `json:"email"         db:"email"`
	FullName      string    `json:"fullName"      db:"full_name"`
	PasswordHash  string    `json:"-"             db:"password_hash"`
	AvatarURL     string    `json:"avatarUrl"     db:"avatar_url"`      // required, set at registration
	CoverImageURL string    `json:"coverImageUrl" db:"cover_image_url"` // optional
	RefreshToken  string    `json:"-"             db:"refresh_token"`   // current rotation value, empty when revoked
	CreatedAt     time.Time `json:"createdAt"     db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt"     db:"updated_at"`
}

// PublicUser is the sanitized outward representation of a User. It is the
// only user shape handlers and the session gate ever see.
type PublicUser struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL string    `json:"coverImageUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Public returns the sanitized projection of u.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// Subscription is a directed edge: subscriber follows channel. Both ends are
// user IDs. This core only aggregates over subscriptions; it never mutates
// them.
type Subscription struct {
	ID           string    `json:"id"           db:"id"`
	SubscriberID string    `json:"subscriberId" db:"subscriber_id"`
	ChannelID    string    `json:"channelId"    db:"channel_id"`
	CreatedAt    time.Time `json:"createdAt"    db:"created_at"`
}

// ChannelProfile is the composed channel view: the channel's public fields
// plus subscriber-graph aggregates computed in a single store round trip.
type ChannelProfile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	FullName          string `json:"fullName"`
	AvatarURL         string `json:"avatarUrl"`
	CoverImageURL     string `json:"coverImageUrl"`
	SubscribersCount  int64  `json:"subscribersCount"`
	SubscribedToCount int64  `json:"channelsSubscribedToCount"`
	// IsSubscribed reports whether the requesting identity subscribes to
	// this channel. Always false for anonymous requests.
	IsSubscribed bool `json:"isSubscribed"`
}
