package seen

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"skyreach/internal/core"
)

// Repository is the dedup store. Seen marks are write-once: an insert
// hitting an existing (post_id, platform) key is a no-op, never an update,
// so a processed post can not be resurrected.
type Repository struct {
	DB core.DB
}

func (r *Repository) HasSeen(ctx context.Context, postID, platform string) (bool, error) {
	var count int64
	err := r.DB.
		Model(&core.SeenPost{}).
		WithContext(ctx).
		Where("post_id = ? AND platform = ?", postID, platform).
		Count(&count).Error
	if err != nil {
		return false, storeErr(err)
	}
	return count > 0, nil
}

func (r *Repository) MarkSeen(ctx context.Context, post core.SeenPost) error {
	if post.SeenAt.IsZero() {
		post.SeenAt = time.Now()
	}

	res := r.DB.
		Model(&core.SeenPost{}).
		WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&post)
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// The key already exists. Re-marking with the same timestamp is an
	// idempotent no-op; a different timestamp means two code paths claimed
	// the same post, which must never silently rewrite the original mark.
	var existing core.SeenPost
	err := r.DB.
		Model(&core.SeenPost{}).
		WithContext(ctx).
		Where("post_id = ? AND platform = ?", post.PostID, post.Platform).
		First(&existing).Error
	if err != nil {
		return storeErr(err)
	}
	if !existing.SeenAt.Equal(post.SeenAt) {
		return fmt.Errorf("%w: %s on %s", core.ErrSeenConflict, post.PostID, post.Platform)
	}
	return nil
}

func (r *Repository) HasResponded(ctx context.Context, postID, platform string) (bool, error) {
	var count int64
	err := r.DB.
		Model(&core.SeenPost{}).
		WithContext(ctx).
		Where("post_id = ? AND platform = ? AND responded", postID, platform).
		Count(&count).Error
	if err != nil {
		return false, storeErr(err)
	}
	return count > 0, nil
}

func (r *Repository) MarkResponded(ctx context.Context, postID, platform string) error {
	err := r.DB.
		Model(&core.SeenPost{}).
		WithContext(ctx).
		Where("post_id = ? AND platform = ?", postID, platform).
		Update("responded", true).Error
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *Repository) CountSince(ctx context.Context, platform string, since time.Time) (int64, error) {
	var count int64
	err := r.DB.
		Model(&core.SeenPost{}).
		WithContext(ctx).
		Where("platform = ? AND seen_at > ?", platform, since).
		Count(&count).Error
	if err != nil {
		return 0, storeErr(err)
	}
	return count, nil
}

func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB.
		Model(&core.SeenPost{}).
		WithContext(ctx).
		Where("seen_at < ? AND NOT responded", cutoff).
		Delete(&core.SeenPost{})
	if res.Error != nil {
		return 0, storeErr(res.Error)
	}
	return res.RowsAffected, nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
}
