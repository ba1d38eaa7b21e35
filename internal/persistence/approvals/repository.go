package approvals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"skyreach/internal/core"
)

// Repository owns pending_approvals. All transitions out of the pending
// state go through a single-statement compare-and-set, so concurrent
// callback deliveries and the expirer can never both win.
type Repository struct {
	DB core.DB
}

func (r *Repository) Create(ctx context.Context, approval *core.PendingApproval) error {
	if approval.Status == "" {
		approval.Status = core.StatusPending
	}
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = time.Now()
	}

	err := r.DB.
		Model(&core.PendingApproval{}).
		WithContext(ctx).
		Create(approval).Error
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, token string) (*core.PendingApproval, error) {
	var approval core.PendingApproval
	err := r.DB.
		Model(&core.PendingApproval{}).
		WithContext(ctx).
		Where("token = ?", token).
		First(&approval).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrApprovalNotFound
		}
		return nil, storeErr(err)
	}
	return &approval, nil
}

func (r *Repository) HasPending(ctx context.Context, postID, platform string) (bool, error) {
	var count int64
	err := r.DB.
		Model(&core.PendingApproval{}).
		WithContext(ctx).
		Where("post_id = ? AND platform = ? AND status = ?", postID, platform, core.StatusPending).
		Count(&count).Error
	if err != nil {
		return false, storeErr(err)
	}
	return count > 0, nil
}

func (r *Repository) Resolve(ctx context.Context, token string, status core.ApprovalStatus, at time.Time) (*core.PendingApproval, error) {
	if !core.StatusPending.CanTransition(status) {
		return nil, fmt.Errorf("%w: pending -> %s", core.ErrIllegalTransition, status)
	}

	res := r.DB.
		Model(&core.PendingApproval{}).
		WithContext(ctx).
		Where("token = ? AND status = ?", token, core.StatusPending).
		Updates(map[string]any{"status": status, "resolved_at": at})
	if res.Error != nil {
		return nil, storeErr(res.Error)
	}

	if res.RowsAffected == 0 {
		// Either the token is unknown or someone else already resolved it.
		approval, err := r.Get(ctx, token)
		if err != nil {
			return nil, err
		}
		return approval, core.ErrApprovalResolved
	}

	return r.Get(ctx, token)
}

func (r *Repository) ExpireBefore(ctx context.Context, cutoff time.Time) ([]core.PendingApproval, error) {
	var stale []core.PendingApproval
	err := r.DB.
		Model(&core.PendingApproval{}).
		WithContext(ctx).
		Where("status = ? AND created_at < ?", core.StatusPending, cutoff).
		Find(&stale).Error
	if err != nil {
		return nil, storeErr(err)
	}

	expired := make([]core.PendingApproval, 0, len(stale))
	now := time.Now()
	for _, approval := range stale {
		resolved, err := r.Resolve(ctx, approval.Token, core.StatusExpired, now)
		if err != nil {
			if errors.Is(err, core.ErrApprovalResolved) {
				// Lost the race to a callback. Fine.
				continue
			}
			return expired, err
		}
		expired = append(expired, *resolved)
	}

	return expired, nil
}

func (r *Repository) CountPending(ctx context.Context, platform string) (int64, error) {
	var count int64
	err := r.DB.
		Model(&core.PendingApproval{}).
		WithContext(ctx).
		Where("platform = ? AND status = ?", platform, core.StatusPending).
		Count(&count).Error
	if err != nil {
		return 0, storeErr(err)
	}
	return count, nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
}
