// Package authz resolves an acting account to its role and answers scope
// questions as pure functions of (role, relationship-to-target). There is no
// ambient "current user": every check takes the actor explicitly.
package authz

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/agency-backoffice/internal/db"
	apperr "github.com/oggyb/agency-backoffice/internal/errors"
)

// Actor is the resolved identity + role of the account driving an operation.
type Actor struct {
	ID       uint64
	Role     db.Role
	AgencyID *uint64
}

// ActorFrom builds an Actor from a user row.
func ActorFrom(u *db.User) Actor {
	return Actor{ID: u.ID, Role: u.Role, AgencyID: u.AgencyID}
}

// Resolve loads the acting user and returns its Actor. Unknown identities
// resolve to an authorization failure, not a 404, so probes learn nothing.
func Resolve(ctx context.Context, gdb *gorm.DB, userID uint64) (Actor, error) {
	var u db.User
	if err := gdb.WithContext(ctx).First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Actor{}, apperr.Unauthorized("unknown actor")
		}
		return Actor{}, apperr.Map(err)
	}
	return ActorFrom(&u), nil
}

// OwnsAssignment reports whether the actor is the matchmaker the target is
// assigned to.
func OwnsAssignment(actor Actor, target *db.User) bool {
	return actor.Role == db.RoleMatchmaker &&
		target.AssignedMatchmakerID != nil &&
		*target.AssignedMatchmakerID == actor.ID
}

// sameAgency reports whether both sides carry the same non-nil agency.
func sameAgency(actor Actor, target *db.User) bool {
	return actor.AgencyID != nil && target.AgencyID != nil &&
		*actor.AgencyID == *target.AgencyID
}

// CanManageAccount answers whether the actor may activate/deactivate the
// target's account.
//
// Admin targets anyone. A matchmaker targets only user-role accounts in a
// managed status (member/client/client_expire) assigned to them. A manager
// uses the agency-scoped variant: same constraint on the target, scoped by
// agency instead of assignment.
func CanManageAccount(actor Actor, target *db.User) bool {
	switch actor.Role {
	case db.RoleAdmin:
		return true
	case db.RoleMatchmaker:
		return target.Role == db.RoleUser && target.Status.IsManaged() && OwnsAssignment(actor, target)
	case db.RoleManager:
		return target.Role == db.RoleUser && target.Status.IsManaged() && sameAgency(actor, target)
	default:
		return false
	}
}

// CanReviewReactivation answers whether the actor may approve or reject a
// reactivation request raised by target.
func CanReviewReactivation(actor Actor, target *db.User) bool {
	if actor.Role == db.RoleAdmin {
		return true
	}
	return actor.Role == db.RoleMatchmaker &&
		target.Status.IsManaged() &&
		OwnsAssignment(actor, target)
}

// CanAssign answers whether the actor may attach a user to a matchmaker's
// portfolio. Matchmakers do not self-assign prospects; that is a management
// decision.
func CanAssign(actor Actor, target *db.User) bool {
	if target.Role != db.RoleUser {
		return false
	}
	switch actor.Role {
	case db.RoleAdmin:
		return true
	case db.RoleManager:
		return sameAgency(actor, target)
	default:
		return false
	}
}

// CanUnassign answers whether the actor may clear the target's assignment.
// Per the lifecycle rules this is an admin or owning-matchmaker action.
func CanUnassign(actor Actor, target *db.User) bool {
	if actor.Role == db.RoleAdmin {
		return true
	}
	return OwnsAssignment(actor, target)
}

// CanApproveStaff answers whether the actor may settle a staff account's
// approval status. Admin only.
func CanApproveStaff(actor Actor, target *db.User) bool {
	return actor.Role == db.RoleAdmin && target.Role.IsStaff()
}
