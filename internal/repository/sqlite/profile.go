package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/streamhub/internal/apperror"
	"github.com/sakif/streamhub/internal/model"
	"github.com/sakif/streamhub/internal/repository"
)

var (
	_ repository.ProfileRepository = (*DB)(nil)
	_ repository.FixtureRepository = (*DB)(nil)
)

// ChannelProfile computes the channel view in one statement: channel fields,
// both subscription-edge counts, and whether requesterID subscribes to the
// channel. One round trip means the counts and the flag come from a single
// consistent snapshot.
func (db *DB) ChannelProfile(ctx context.Context, username, requesterID string) (*model.ChannelProfile, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	var (
		p            model.ChannelProfile
		isSubscribed int
	)

	err := db.conn.QueryRowContext(ctx, `
		SELECT
			u.id, u.username, u.email, u.full_name, u.avatar_url, u.cover_image_url,
			(SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id)    AS subscribers_count,
			(SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id) AS subscribed_to_count,
			EXISTS(
				SELECT 1 FROM subscriptions s
				WHERE s.channel_id = u.id AND s.subscriber_id = ?
			) AS is_subscribed
		FROM users u
		WHERE u.username = ?`,
		requesterID, username,
	).Scan(
		&p.ID,
		&p.Username,
		&p.Email,
		&p.FullName,
		&p.AvatarURL,
		&p.CoverImageURL,
		&p.SubscribersCount,
		&p.SubscribedToCount,
		&isSubscribed,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("channel", username)
		}
		return nil, fmt.Errorf("sqlite: aggregating channel profile for %q: %w", username, err)
	}

	p.IsSubscribed = isSubscribed == 1
	return &p, nil
}

// WatchHistory resolves the user's watch sequence to full video records with
// the owner denormalized one level deep. ORDER BY position replays the
// stored append order.
func (db *DB) WatchHistory(ctx context.Context, userID string) ([]model.WatchHistoryEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT
			v.id, v.owner_id, v.title, v.description, v.video_url, v.thumbnail_url,
			v.duration, v.views, v.created_at,
			o.id, o.username, o.full_name, o.avatar_url
		FROM watch_history wh
		JOIN videos v ON v.id = wh.video_id
		JOIN users o ON o.id = v.owner_id
		WHERE wh.user_id = ?
		ORDER BY wh.position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying watch history for user %s: %w", userID, err)
	}
	defer rows.Close()

	// Empty history is a normal state, not an error: always return a
	// non-nil slice so it serializes as [].
	entries := []model.WatchHistoryEntry{}
	for rows.Next() {
		var e model.WatchHistoryEntry
		if err := rows.Scan(
			&e.Video.ID,
			&e.Video.OwnerID,
			&e.Video.Title,
			&e.Video.Description,
			&e.Video.VideoURL,
			&e.Video.ThumbnailURL,
			&e.Video.Duration,
			&e.Video.Views,
			&e.Video.CreatedAt,
			&e.Owner.ID,
			&e.Owner.Username,
			&e.Owner.FullName,
			&e.Owner.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning watch history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating watch history: %w", err)
	}

	return entries, nil
}

// CreateSubscription records a subscriber → channel edge. Owned by the
// subscription pipeline in production; used here by tests and seed tooling.
func (db *DB) CreateSubscription(ctx context.Context, subscriberID, channelID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at) VALUES (?, ?, ?, ?)`,
		xid.New().String(), subscriberID, channelID, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("subscription already exists")
		}
		return fmt.Errorf("sqlite: inserting subscription: %w", err)
	}
	return nil
}

// CreateVideo records a published video.
func (db *DB) CreateVideo(ctx context.Context, video *model.Video) error {
	if video.ID == "" {
		video.ID = xid.New().String()
	}
	if video.CreatedAt.IsZero() {
		video.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO videos (id, owner_id, title, description, video_url, thumbnail_url, duration, views, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ID,
		video.OwnerID,
		video.Title,
		video.Description,
		video.VideoURL,
		video.ThumbnailURL,
		video.Duration,
		video.Views,
		video.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting video %s: %w", video.ID, err)
	}
	return nil
}

// AppendWatchHistory appends videoID at the tail of the user's watch
// sequence. The position is computed in the insert itself, keeping the
// append atomic.
func (db *DB) AppendWatchHistory(ctx context.Context, userID, videoID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO watch_history (user_id, video_id, position)
		 SELECT ?, ?, COALESCE(MAX(position) + 1, 0) FROM watch_history WHERE user_id = ?`,
		userID, videoID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending watch history for user %s: %w", userID, err)
	}
	return nil
}
