package responses

import (
	"context"
	"fmt"
	"time"

	"skyreach/internal/core"
)

// Repository is the append-only response log. Rate windows are counted
// from it directly.
type Repository struct {
	DB core.DB
}

func (r *Repository) Append(ctx context.Context, entry core.ResponseLogEntry) error {
	if entry.PostedAt.IsZero() {
		entry.PostedAt = time.Now()
	}

	err := r.DB.
		Model(&core.ResponseLogEntry{}).
		WithContext(ctx).
		Create(&entry).Error
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *Repository) CountSince(ctx context.Context, platform string, since time.Time) (int64, error) {
	var count int64
	err := r.DB.
		Model(&core.ResponseLogEntry{}).
		WithContext(ctx).
		Where("platform = ? AND posted_at > ?", platform, since).
		Count(&count).Error
	if err != nil {
		return 0, storeErr(err)
	}
	return count, nil
}

func (r *Repository) LastPostedAt(ctx context.Context, platform string) (*time.Time, error) {
	var entry core.ResponseLogEntry
	res := r.DB.
		Model(&core.ResponseLogEntry{}).
		WithContext(ctx).
		Where("platform = ?", platform).
		Order("posted_at DESC").
		Limit(1).
		Find(&entry)
	if res.Error != nil {
		return nil, storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &entry.PostedAt, nil
}

func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB.
		Model(&core.ResponseLogEntry{}).
		WithContext(ctx).
		Where("posted_at < ?", cutoff).
		Delete(&core.ResponseLogEntry{})
	if res.Error != nil {
		return 0, storeErr(res.Error)
	}
	return res.RowsAffected, nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
}
