package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/agency-backoffice/internal/db"
	apperr "github.com/oggyb/agency-backoffice/internal/errors"
)

// UserRepository provides data access for users and their profiles.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// GetByID loads a user or returns a not-found domain error.
func (r *UserRepository) GetByID(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Map(err)
	}
	return &u, nil
}

// GetByEmail loads a user by email for login.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Map(err)
	}
	return &u, nil
}

// GetWithProfile loads a user together with its profile (which may be nil).
func (r *UserRepository) GetWithProfile(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).Preload("Profile").First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Map(err)
	}
	return &u, nil
}

// SetAccountStatus applies an activation or deactivation in one transaction.
//
// Behavior:
//   - Creates an empty profile first if the user has none yet.
//   - Writes account_status, the matching reason field, and nulls the
//     opposite reason field in the same UPDATE, so the mutual-exclusivity
//     invariant can never be observed broken.
//   - Re-applying the current status just refreshes the reason (idempotent).
func (r *UserRepository) SetAccountStatus(ctx context.Context, userID uint64, status, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile db.Profile
		err := tx.Where("user_id = ?", userID).First(&profile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			profile = db.Profile{UserID: userID, AccountStatus: db.AccountActive}
			if err := tx.Create(&profile).Error; err != nil {
				return apperr.Map(err)
			}
		} else if err != nil {
			return apperr.Map(err)
		}

		updates := map[string]any{
			"account_status": status,
			"updated_at":     time.Now(),
		}
		if status == db.AccountActive {
			updates["activation_reason"] = reason
			updates["deactivation_reason"] = nil
		} else {
			updates["deactivation_reason"] = reason
			updates["activation_reason"] = nil
		}

		if err := tx.Model(&db.Profile{}).Where("user_id = ?", userID).Updates(updates).Error; err != nil {
			return apperr.Map(err)
		}
		return nil
	})
}

// SetAssignment attaches the user to a matchmaker (or clears the link when
// matchmakerID is nil) and optionally moves its lifecycle status.
func (r *UserRepository) SetAssignment(ctx context.Context, userID uint64, matchmakerID *uint64, status *db.UserStatus) error {
	updates := map[string]any{
		"assigned_matchmaker_id": matchmakerID,
		"updated_at":             time.Now(),
	}
	if status != nil {
		updates["status"] = *status
	}
	res := r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return apperr.Map(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// SetApprovalStatus settles a staff account's approval state.
func (r *UserRepository) SetApprovalStatus(ctx context.Context, userID uint64, status db.ApprovalStatus) error {
	res := r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", userID).
		Updates(map[string]any{"approval_status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return apperr.Map(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}
