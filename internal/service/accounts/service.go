// Package accounts implements the account-status transitions, assignment
// moves and the reactivation-request workflow.
package accounts

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/agency-backoffice/internal/app"
	"github.com/oggyb/agency-backoffice/internal/authz"
	"github.com/oggyb/agency-backoffice/internal/db"
	apperr "github.com/oggyb/agency-backoffice/internal/errors"
	"github.com/oggyb/agency-backoffice/internal/notify"
	"github.com/oggyb/agency-backoffice/internal/repository"
)

// Review decisions accepted by ReviewReactivation.
const (
	DecisionApprove = "approved"
	DecisionReject  = "rejected"
)

// Service contains the business logic on top of the repository layer.
type Service struct {
	appCtx        *app.AppContext
	users         *repository.UserRepository
	reactivations *repository.ReactivationRepository
}

// NewService creates an accounts service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:        appCtx,
		users:         repository.NewUserRepository(appCtx.DB),
		reactivations: repository.NewReactivationRepository(appCtx.DB),
	}
}

// validateReason enforces the shared reason contract: required, non-empty,
// at most 1000 characters.
func validateReason(field, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperr.Validation(field, "reason is required")
	}
	if len(reason) > 1000 {
		return apperr.Validation(field, "reason must be at most 1000 characters")
	}
	return nil
}

// Activate turns the target's account on with an audit reason.
//
// Behavior:
//   - Admin targets anyone; matchmaker/manager only their scoped managed
//     users (see authz.CanManageAccount).
//   - A missing profile is created first; the reason swap is atomic.
//   - Re-activating an active account just re-applies the reason.
func (s *Service) Activate(ctx context.Context, actor authz.Actor, targetID uint64, reason string) error {
	return s.setAccountStatus(ctx, actor, targetID, db.AccountActive, reason)
}

// Deactivate turns the target's account off with an audit reason.
func (s *Service) Deactivate(ctx context.Context, actor authz.Actor, targetID uint64, reason string) error {
	return s.setAccountStatus(ctx, actor, targetID, db.AccountDeactivated, reason)
}

func (s *Service) setAccountStatus(ctx context.Context, actor authz.Actor, targetID uint64, status, reason string) error {
	if err := validateReason("reason", reason); err != nil {
		return err
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if !authz.CanManageAccount(actor, target) {
		return apperr.Unauthorized("not allowed to manage this account")
	}

	if err := s.users.SetAccountStatus(ctx, targetID, status, strings.TrimSpace(reason)); err != nil {
		return err
	}

	subject := notify.SubjectAccountActivated
	if status == db.AccountDeactivated {
		subject = notify.SubjectAccountDeactivated
	}
	s.appCtx.Notifier.Publish(ctx, subject, actor.ID, targetID, map[string]any{"reason": reason})

	s.appCtx.Logger.Info("account status changed",
		"actor", actor.ID, "target", targetID, "status", status)
	return nil
}

// SubmitReactivation lets a deactivated user ask for its account back.
//
// Behavior:
//   - Actor must be a user-role account whose profile is deactivated.
//   - At most one pending request per user; the check-then-insert is
//     transactional in the repository.
func (s *Service) SubmitReactivation(ctx context.Context, actor authz.Actor, reason string) (*db.ReactivationRequest, error) {
	if actor.Role != db.RoleUser {
		return nil, apperr.Unauthorized("only users may request reactivation")
	}
	if err := validateReason("reason", reason); err != nil {
		return nil, err
	}

	user, err := s.users.GetWithProfile(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if user.Profile == nil || user.Profile.AccountStatus != db.AccountDeactivated {
		return nil, apperr.Conflict("account is not deactivated")
	}

	req, err := s.reactivations.CreatePending(ctx, actor.ID, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}

	s.appCtx.Notifier.Publish(ctx, notify.SubjectReactivationSubmit, actor.ID, actor.ID, nil)
	s.appCtx.Logger.Info("reactivation request submitted", "user", actor.ID, "request", req.ID)
	return req, nil
}

// ReviewReactivation settles a pending request.
//
// Behavior:
//   - Reviewer must be admin, or the matchmaker the requester is assigned to
//     (requester in a managed status).
//   - Terminal: approve/reject exactly once; a raced duplicate review gets a
//     conflict error from the guarded close.
//   - Approve also reactivates the account with the standard audit reason;
//     close and reactivation share one transaction so there is no partial
//     write.
func (s *Service) ReviewReactivation(ctx context.Context, actor authz.Actor, requestID uint64, decision, notes string) error {
	if decision != DecisionApprove && decision != DecisionReject {
		return apperr.Validation("status", "decision must be approved or rejected")
	}

	req, err := s.reactivations.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != db.RequestPending {
		return apperr.Conflict("reactivation request already reviewed")
	}

	target, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return err
	}
	if !authz.CanReviewReactivation(actor, target) {
		return apperr.Unauthorized("not allowed to review this request")
	}

	notes = strings.TrimSpace(notes)
	now := time.Now()

	status := db.RequestRejected
	if decision == DecisionApprove {
		status = db.RequestApproved
	}

	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewReactivationRepository(tx).Close(ctx, requestID, status, actor.ID, notes, now); err != nil {
			return err
		}
		if decision == DecisionApprove {
			auditNotes := notes
			if auditNotes == "" {
				auditNotes = "Approuvé"
			}
			reason := "Réactivé via demande de réactivation - " + auditNotes
			if err := repository.NewUserRepository(tx).SetAccountStatus(ctx, req.UserID, db.AccountActive, reason); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.appCtx.Notifier.Publish(ctx, notify.SubjectReactivationReviewed, actor.ID, req.UserID,
		map[string]any{"status": status})
	s.appCtx.Logger.Info("reactivation request reviewed",
		"reviewer", actor.ID, "request", requestID, "status", status)
	return nil
}

// ListPendingReactivations returns the requests the reviewer may act on.
func (s *Service) ListPendingReactivations(ctx context.Context, actor authz.Actor) ([]db.ReactivationRequest, error) {
	switch actor.Role {
	case db.RoleAdmin:
		return s.reactivations.ListPendingForReviewer(ctx, actor.ID, true)
	case db.RoleMatchmaker:
		return s.reactivations.ListPendingForReviewer(ctx, actor.ID, false)
	default:
		return nil, apperr.Unauthorized("not allowed to list reactivation requests")
	}
}

// Assign attaches a user to a matchmaker's portfolio. Assigning a prospect
// promotes it to member.
func (s *Service) Assign(ctx context.Context, actor authz.Actor, targetID, matchmakerID uint64) error {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if !authz.CanAssign(actor, target) {
		return apperr.Unauthorized("not allowed to assign this user")
	}

	matchmaker, err := s.users.GetByID(ctx, matchmakerID)
	if err != nil {
		return err
	}
	if matchmaker.Role != db.RoleMatchmaker || matchmaker.ApprovalStatus != db.ApprovalApproved {
		return apperr.Validation("matchmaker_id", "target matchmaker is not an approved matchmaker")
	}

	var status *db.UserStatus
	if target.Status == db.StatusProspect {
		member := db.StatusMember
		status = &member
	}
	if err := s.users.SetAssignment(ctx, targetID, &matchmakerID, status); err != nil {
		return err
	}

	s.appCtx.Logger.Info("user assigned",
		"actor", actor.ID, "target", targetID, "matchmaker", matchmakerID)
	return nil
}

// Unassign clears the target's matchmaker link. Admin or the owning
// matchmaker only.
func (s *Service) Unassign(ctx context.Context, actor authz.Actor, targetID uint64) error {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if !authz.CanUnassign(actor, target) {
		return apperr.Unauthorized("not allowed to unassign this user")
	}
	if err := s.users.SetAssignment(ctx, targetID, nil, nil); err != nil {
		return err
	}
	s.appCtx.Logger.Info("user unassigned", "actor", actor.ID, "target", targetID)
	return nil
}

// ApproveStaff settles a staff account's approval status. Admin only.
func (s *Service) ApproveStaff(ctx context.Context, actor authz.Actor, targetID uint64, approve bool) error {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if !authz.CanApproveStaff(actor, target) {
		return apperr.Unauthorized("not allowed to approve staff accounts")
	}

	status := db.ApprovalRejected
	if approve {
		status = db.ApprovalApproved
	}
	if err := s.users.SetApprovalStatus(ctx, targetID, status); err != nil {
		return err
	}
	s.appCtx.Logger.Info("staff approval updated",
		"actor", actor.ID, "target", targetID, "status", status)
	return nil
}
