package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/agency-backoffice/internal/db"
	apperr "github.com/oggyb/agency-backoffice/internal/errors"
	"github.com/oggyb/agency-backoffice/internal/utils/pagination"
)

// PropositionRepository provides data access for propositions.
type PropositionRepository struct {
	db *gorm.DB
}

// NewPropositionRepository creates a new repository bound to the given DB
// connection.
func NewPropositionRepository(database *gorm.DB) *PropositionRepository {
	return &PropositionRepository{db: database}
}

// latestPerRecipient reduces a created_at-descending slice to the most recent
// proposition per recipient.
func latestPerRecipient(props []db.Proposition) []db.Proposition {
	seen := make(map[uint64]bool, len(props))
	latest := make([]db.Proposition, 0, 2)
	for _, p := range props {
		if seen[p.RecipientUserID] {
			continue
		}
		seen[p.RecipientUserID] = true
		latest = append(latest, p)
	}
	return latest
}

// CreateForRecipients runs the triple conflict check and the fan-out insert
// inside one transaction.
//
// Behavior, per (matchmaker, reference, compatible) triple:
//   - If any recipient's most recent proposition is still pending and not
//     expired → conflict ("already sent, awaiting response").
//   - If two or more recipients' most recent statuses are all interested
//     (both sides already said yes) → conflict ("already accepted by both").
//     Soft guard only: it blocks new sends, it does not lock the thread.
//   - Otherwise one pending row per recipient is created.
func (r *PropositionRepository) CreateForRecipients(
	ctx context.Context,
	matchmakerID, referenceID, compatibleID uint64,
	recipients []uint64,
	message string,
	now time.Time,
) ([]db.Proposition, error) {
	var created []db.Proposition
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prior []db.Proposition
		if err := tx.
			Where("matchmaker_id = ? AND reference_user_id = ? AND compatible_user_id = ?",
				matchmakerID, referenceID, compatibleID).
			Order("created_at DESC, id DESC").
			Find(&prior).Error; err != nil {
			return apperr.Map(err)
		}

		latest := latestPerRecipient(prior)
		interested := 0
		for _, p := range latest {
			if p.Status == db.PropositionPending && !p.IsExpired(now) {
				return apperr.Conflict("a proposition for this pair was already sent and is awaiting a response")
			}
			if p.Status == db.PropositionInterested {
				interested++
			}
		}
		if interested >= 2 {
			return apperr.Conflict("this pair already accepted the proposition, a meeting is being arranged")
		}

		for _, recipientID := range recipients {
			p := db.Proposition{
				MatchmakerID:     matchmakerID,
				ReferenceUserID:  referenceID,
				CompatibleUserID: compatibleID,
				RecipientUserID:  recipientID,
				Message:          message,
				Status:           db.PropositionPending,
			}
			if err := tx.Create(&p).Error; err != nil {
				return apperr.Map(err)
			}
			created = append(created, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID loads a proposition or returns a not-found domain error.
func (r *PropositionRepository) GetByID(ctx context.Context, id uint64) (*db.Proposition, error) {
	var p db.Proposition
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("proposition not found")
		}
		return nil, apperr.Map(err)
	}
	return &p, nil
}

// Close records the recipient's one-time answer.
//
// Behavior:
//   - Guarded UPDATE (WHERE status = 'pending'): a duplicate response races
//     to zero rows affected and gets a conflict error.
//   - Expiry is re-checked by the caller before this runs; the cutoff is also
//     enforced here on created_at so a stale in-flight respond cannot slip
//     past the 7-day window.
func (r *PropositionRepository) Close(ctx context.Context, id uint64, status, responseMessage string, now time.Time) error {
	cutoff := now.Add(-db.PropositionTTL)
	res := r.db.WithContext(ctx).Model(&db.Proposition{}).
		Where("id = ? AND status = ? AND created_at >= ?", id, db.PropositionPending, cutoff).
		Updates(map[string]any{
			"status":           status,
			"response_message": responseMessage,
			"responded_at":     now,
			"updated_at":       now,
		})
	if res.Error != nil {
		return apperr.Map(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("proposition already answered or expired")
	}
	return nil
}

// ListForRecipient returns the recipient's propositions, newest first, with
// cursor-based pagination.
func (r *PropositionRepository) ListForRecipient(
	ctx context.Context,
	recipientID uint64,
	paginationToken *string,
	limit int,
) ([]db.Proposition, *string, error) {
	return r.list(ctx, "recipient_user_id = ?", recipientID, paginationToken, limit)
}

// ListForMatchmaker returns the propositions a matchmaker sent, newest first,
// with cursor-based pagination.
func (r *PropositionRepository) ListForMatchmaker(
	ctx context.Context,
	matchmakerID uint64,
	paginationToken *string,
	limit int,
) ([]db.Proposition, *string, error) {
	return r.list(ctx, "matchmaker_id = ?", matchmakerID, paginationToken, limit)
}

func (r *PropositionRepository) list(
	ctx context.Context,
	cond string, arg uint64,
	paginationToken *string,
	limit int,
) ([]db.Proposition, *string, error) {
	var props []db.Proposition

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, apperr.Validation("pagination_token", "invalid pagination token")
	}

	query := r.db.WithContext(ctx).
		Where(cond, arg).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if cursor.ID > 0 && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.Find(&props).Error; err != nil {
		return nil, nil, apperr.Map(err)
	}

	var nextToken *string
	if len(props) > limit {
		last := props[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:          last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		props = props[:limit]
	}

	return props, nextToken, nil
}

// CountOpenForRecipient counts pending, non-expired propositions addressed to
// the recipient. Backs the inbox badge (Redis is the first read, this is the
// fallback).
func (r *PropositionRepository) CountOpenForRecipient(ctx context.Context, recipientID uint64, now time.Time) (int64, error) {
	cutoff := now.Add(-db.PropositionTTL)
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Proposition{}).
		Where("recipient_user_id = ? AND status = ? AND created_at >= ?",
			recipientID, db.PropositionPending, cutoff).
		Count(&count).Error
	if err != nil {
		return 0, apperr.Map(err)
	}
	return count, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
