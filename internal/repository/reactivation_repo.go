package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/agency-backoffice/internal/db"
	apperr "github.com/oggyb/agency-backoffice/internal/errors"
)

// ReactivationRepository provides data access for reactivation requests.
type ReactivationRepository struct {
	db *gorm.DB
}

// NewReactivationRepository creates a new repository bound to the given DB
// connection.
func NewReactivationRepository(database *gorm.DB) *ReactivationRepository {
	return &ReactivationRepository{db: database}
}

// CreatePending inserts a new pending request for the user.
//
// Behavior:
//   - The "no pending request exists" check and the insert run inside one
//     transaction, so two concurrent submissions cannot both pass the check.
//   - A pending duplicate yields a conflict error and no row.
func (r *ReactivationRepository) CreatePending(ctx context.Context, userID uint64, reason string) (*db.ReactivationRequest, error) {
	var req db.ReactivationRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.ReactivationRequest{}).
			Where("user_id = ? AND status = ?", userID, db.RequestPending).
			Count(&count).Error; err != nil {
			return apperr.Map(err)
		}
		if count > 0 {
			return apperr.Conflict("a pending reactivation request already exists")
		}

		req = db.ReactivationRequest{
			UserID: userID,
			Reason: reason,
			Status: db.RequestPending,
		}
		if err := tx.Create(&req).Error; err != nil {
			return apperr.Map(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByID loads a request or returns a not-found domain error.
func (r *ReactivationRepository) GetByID(ctx context.Context, id uint64) (*db.ReactivationRequest, error) {
	var req db.ReactivationRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("reactivation request not found")
		}
		return nil, apperr.Map(err)
	}
	return &req, nil
}

// Close settles a pending request exactly once.
//
// Behavior:
//   - Guarded UPDATE (WHERE status = 'pending'): a second reviewer racing on
//     the same request sees zero rows affected and gets a conflict error.
//   - Approved/rejected are terminal; there is no reopening.
func (r *ReactivationRepository) Close(ctx context.Context, id uint64, status string, reviewerID uint64, notes string, reviewedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&db.ReactivationRequest{}).
		Where("id = ? AND status = ?", id, db.RequestPending).
		Updates(map[string]any{
			"status":       status,
			"reviewed_by":  reviewerID,
			"reviewed_at":  reviewedAt,
			"review_notes": notes,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return apperr.Map(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("reactivation request already reviewed")
	}
	return nil
}

// ListPendingForReviewer returns pending requests visible to the reviewer:
// all of them for an admin, only those raised by the matchmaker's assignees
// otherwise.
func (r *ReactivationRepository) ListPendingForReviewer(ctx context.Context, reviewerID uint64, admin bool) ([]db.ReactivationRequest, error) {
	var reqs []db.ReactivationRequest
	query := r.db.WithContext(ctx).
		Table("reactivation_requests rr").
		Where("rr.status = ?", db.RequestPending).
		Order("rr.created_at ASC")
	if !admin {
		query = query.Joins("JOIN users u ON u.id = rr.user_id").
			Where("u.assigned_matchmaker_id = ?", reviewerID)
	}
	if err := query.Find(&reqs).Error; err != nil {
		return nil, apperr.Map(err)
	}
	return reqs, nil
}

// PendingForUser reports whether the user currently has a pending request.
func (r *ReactivationRepository) PendingForUser(ctx context.Context, userID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.ReactivationRequest{}).
		Where("user_id = ? AND status = ?", userID, db.RequestPending).
		Count(&count).Error
	if err != nil {
		return false, apperr.Map(err)
	}
	return count > 0, nil
}
