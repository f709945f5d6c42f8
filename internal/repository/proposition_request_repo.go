package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/agency-backoffice/internal/db"
	apperr "github.com/oggyb/agency-backoffice/internal/errors"
)

// PropositionRequestRepository provides data access for the cross-matchmaker
// handshake records.
type PropositionRequestRepository struct {
	db *gorm.DB
}

// NewPropositionRequestRepository creates a new repository bound to the given
// DB connection.
func NewPropositionRequestRepository(database *gorm.DB) *PropositionRequestRepository {
	return &PropositionRequestRepository{db: database}
}

// CreatePending inserts a new pending request.
//
// Behavior:
//   - At most one pending request per (reference, compatible, from, to)
//     tuple; the existence check and the insert share one transaction.
func (r *PropositionRequestRepository) CreatePending(
	ctx context.Context,
	referenceID, compatibleID, fromID, toID uint64,
	message string,
) (*db.PropositionRequest, error) {
	var req db.PropositionRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.PropositionRequest{}).
			Where("reference_user_id = ? AND compatible_user_id = ? AND from_matchmaker_id = ? AND to_matchmaker_id = ? AND status = ?",
				referenceID, compatibleID, fromID, toID, db.RequestPending).
			Count(&count).Error; err != nil {
			return apperr.Map(err)
		}
		if count > 0 {
			return apperr.Conflict("an identical proposition request is already pending")
		}

		req = db.PropositionRequest{
			ReferenceUserID:  referenceID,
			CompatibleUserID: compatibleID,
			FromMatchmakerID: fromID,
			ToMatchmakerID:   toID,
			Message:          message,
			Status:           db.RequestPending,
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
func (r *PropositionRequestRepository) GetByID(ctx context.Context, id uint64) (*db.PropositionRequest, error) {
	var req db.PropositionRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("proposition request not found")
		}
		return nil, apperr.Map(err)
	}
	return &req, nil
}

// Close settles a pending request exactly once (guarded UPDATE, same idiom as
// ReactivationRepository.Close). SharePhone is persisted only on accept.
func (r *PropositionRequestRepository) Close(
	ctx context.Context,
	id uint64,
	status string,
	rejectionReason *string,
	sharePhone bool,
	organizer *string,
	now time.Time,
) error {
	updates := map[string]any{
		"status":       status,
		"responded_at": now,
		"updated_at":   now,
	}
	if status == db.RequestAccepted {
		updates["share_phone"] = sharePhone
		updates["organizer"] = organizer
	} else {
		updates["rejection_reason"] = rejectionReason
	}

	res := r.db.WithContext(ctx).Model(&db.PropositionRequest{}).
		Where("id = ? AND status = ?", id, db.RequestPending).
		Updates(updates)
	if res.Error != nil {
		return apperr.Map(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("proposition request already answered")
	}
	return nil
}

// HasAcceptedGrant reports whether an accepted request exists from one
// matchmaker to another for this exact pair. This is the sole bypass of
// direct assignment ownership on proposition create.
func (r *PropositionRequestRepository) HasAcceptedGrant(
	ctx context.Context,
	fromID, toID, referenceID, compatibleID uint64,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.PropositionRequest{}).
		Where("from_matchmaker_id = ? AND to_matchmaker_id = ? AND reference_user_id = ? AND compatible_user_id = ? AND status = ?",
			fromID, toID, referenceID, compatibleID, db.RequestAccepted).
		Count(&count).Error
	if err != nil {
		return false, apperr.Map(err)
	}
	return count > 0, nil
}

// ListInbox returns requests addressed to the matchmaker, newest first.
func (r *PropositionRequestRepository) ListInbox(ctx context.Context, matchmakerID uint64) ([]db.PropositionRequest, error) {
	var reqs []db.PropositionRequest
	err := r.db.WithContext(ctx).
		Where("to_matchmaker_id = ?", matchmakerID).
		Order("created_at DESC, id DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, apperr.Map(err)
	}
	return reqs, nil
}

// ListOutbox returns requests the matchmaker sent, newest first.
func (r *PropositionRequestRepository) ListOutbox(ctx context.Context, matchmakerID uint64) ([]db.PropositionRequest, error) {
	var reqs []db.PropositionRequest
	err := r.db.WithContext(ctx).
		Where("from_matchmaker_id = ?", matchmakerID).
		Order("created_at DESC, id DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, apperr.Map(err)
	}
	return reqs, nil
}
