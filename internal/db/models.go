package db

import (
	"time"
)

// Role identifies what an account is allowed to do. Exactly one role is
// attached to every account; there is no role hierarchy or inheritance.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleMatchmaker Role = "matchmaker"
	RoleUser       Role = "user"
)

// IsStaff reports whether the role belongs to back-office personnel.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleMatchmaker
}

// UserStatus is the lifecycle position of a user-role account.
// Only meaningful when Role == RoleUser.
type UserStatus string

const (
	StatusProspect     UserStatus = "prospect"
	StatusMember       UserStatus = "member"
	StatusClient       UserStatus = "client"
	StatusClientExpire UserStatus = "client_expire"
)

// IsManaged reports whether the account has been validated and handed to a
// matchmaker's portfolio (i.e. no longer a raw prospect).
func (s UserStatus) IsManaged() bool {
	return s == StatusMember || s == StatusClient || s == StatusClientExpire
}

// ApprovalStatus applies to staff accounts awaiting admin validation.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Account status values on Profile.
const (
	AccountActive      = "active"
	AccountDeactivated = "desactivated"
)

// Statuses shared by ReactivationRequest and PropositionRequest.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// Proposition statuses as stored. The incoming response verbs
// ("accepted"/"rejected") are mapped onto these by the service layer.
const (
	PropositionPending       = "pending"
	PropositionInterested    = "interested"
	PropositionNotInterested = "not_interested"
)

// PropositionTTL is how long a pending proposition stays answerable.
// Expiry is derived at read time from CreatedAt, never persisted.
const PropositionTTL = 7 * 24 * time.Hour

// Organizer values an accepting matchmaker can pick on a proposition request.
const (
	OrganizerVous = "vous"
	OrganizerMoi  = "moi"
)

// User table. Staff and end-users share one table; Role discriminates.
type User struct {
	ID                   uint64 `gorm:"primaryKey;autoIncrement"`
	Name                 string `gorm:"size:128;not null"`
	Email                string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash         string `gorm:"size:255;not null"`
	Role                 Role   `gorm:"size:16;not null;index"`
	Status               UserStatus
	AssignedMatchmakerID *uint64 `gorm:"index"`
	AgencyID             *uint64 `gorm:"index"`
	ApprovalStatus       ApprovalStatus
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime"`

	Profile *Profile `gorm:"foreignKey:UserID"`
}

// Profile is the 1:1 extension of a user-role account.
//
// Invariant: at most one of ActivationReason/DeactivationReason is non-nil at
// any time; setting one clears the other in the same write. Both are nil only
// before the first activation or deactivation event.
type Profile struct {
	ID                 uint64  `gorm:"primaryKey;autoIncrement"`
	UserID             uint64  `gorm:"uniqueIndex;not null"`
	AccountStatus      string  `gorm:"size:16;not null;default:active"`
	ActivationReason   *string `gorm:"size:1000"`
	DeactivationReason *string `gorm:"size:1000"`

	// Identity document and search-preference fields kept as plain data;
	// nothing in the core branches on them.
	IDDocumentType   string `gorm:"size:32"`
	IDDocumentNumber string `gorm:"size:64"`
	SearchAgeMin     int
	SearchAgeMax     int
	SearchRegion     string `gorm:"size:64"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// ReactivationRequest is a deactivated user's appeal to restore access.
//
// At most one pending request may exist per user; the check-then-insert runs
// inside one transaction in the repository.
type ReactivationRequest struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	UserID      uint64 `gorm:"index;not null"`
	Reason      string `gorm:"size:1000;not null"`
	Status      string `gorm:"size:16;not null;default:pending;index"`
	ReviewedBy  *uint64
	ReviewedAt  *time.Time
	ReviewNotes *string   `gorm:"size:1000"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// Proposition is a directed introduction: one row per recipient, about a
// (reference, compatible) pair, authored by a matchmaker.
//
// Index idx_prop_triple(matchmaker_id, reference_user_id, compatible_user_id)
// serves the latest-per-recipient conflict check on create.
type Proposition struct {
	ID               uint64  `gorm:"primaryKey;autoIncrement"`
	MatchmakerID     uint64  `gorm:"not null;index:idx_prop_triple,priority:1"`
	ReferenceUserID  uint64  `gorm:"not null;index:idx_prop_triple,priority:2"`
	CompatibleUserID uint64  `gorm:"not null;index:idx_prop_triple,priority:3"`
	RecipientUserID  uint64  `gorm:"not null;index"`
	Message          string  `gorm:"size:2000;not null"`
	Status           string  `gorm:"size:16;not null;default:pending;index"`
	ResponseMessage  *string `gorm:"size:2000"`
	RespondedAt      *time.Time
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// IsExpired reports whether the proposition is dead: still pending but past
// its answer window. Derived from CreatedAt so every reader (and the respond
// write path) computes the same answer; the stored status never changes.
func (p *Proposition) IsExpired(now time.Time) bool {
	return p.Status == PropositionPending && now.Sub(p.CreatedAt) > PropositionTTL
}

// EffectiveStatus collapses the derived expiry into the status string for
// listings. Storage is untouched.
func (p *Proposition) EffectiveStatus(now time.Time) string {
	if p.IsExpired(now) {
		return "expired"
	}
	return p.Status
}

// PropositionRequest is the cross-matchmaker handshake: the owner of the
// reference user asks the owner of the compatible user for permission to
// propose across portfolios. An accepted row is the sole bypass of direct
// assignment ownership on proposition create.
type PropositionRequest struct {
	ID               uint64  `gorm:"primaryKey;autoIncrement"`
	ReferenceUserID  uint64  `gorm:"not null;index:idx_propreq_tuple,priority:1"`
	CompatibleUserID uint64  `gorm:"not null;index:idx_propreq_tuple,priority:2"`
	FromMatchmakerID uint64  `gorm:"not null;index:idx_propreq_tuple,priority:3"`
	ToMatchmakerID   uint64  `gorm:"not null;index:idx_propreq_tuple,priority:4"`
	Message          string  `gorm:"size:2000;not null"`
	Status           string  `gorm:"size:16;not null;default:pending;index"`
	RejectionReason  *string `gorm:"size:1000"`
	SharePhone       bool
	Organizer        *string `gorm:"size:8"`
	RespondedAt      *time.Time
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}
