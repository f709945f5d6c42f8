package accounts_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/agency-backoffice/internal/app"
	"github.com/oggyb/agency-backoffice/internal/authz"
	"github.com/oggyb/agency-backoffice/internal/cache"
	"github.com/oggyb/agency-backoffice/internal/config"
	"github.com/oggyb/agency-backoffice/internal/db"
	apperr "github.com/oggyb/agency-backoffice/internal/errors"
	"github.com/oggyb/agency-backoffice/internal/notify"
	"github.com/oggyb/agency-backoffice/internal/service/accounts"
)

// fixture holds the deterministic dataset every test starts from:
//   - admin (1), matchmaker A (2), matchmaker B (3), unapproved matchmaker (4)
//   - member Alice (10) assigned to A, with an active profile
//   - prospect Paul (11), unassigned, no profile row yet
type fixture struct {
	svc   *accounts.Service
	gdb   *gorm.DB
	admin authz.Actor
	mmA   authz.Actor
	mmB   authz.Actor
	alice authz.Actor
	paul  authz.Actor
}

func setupService(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))

	mmA := uint64(2)
	users := []db.User{
		{ID: 1, Name: "Admin", Email: "admin@t", PasswordHash: "x", Role: db.RoleAdmin, ApprovalStatus: db.ApprovalApproved},
		{ID: 2, Name: "MM A", Email: "a@t", PasswordHash: "x", Role: db.RoleMatchmaker, ApprovalStatus: db.ApprovalApproved},
		{ID: 3, Name: "MM B", Email: "b@t", PasswordHash: "x", Role: db.RoleMatchmaker, ApprovalStatus: db.ApprovalApproved},
		{ID: 4, Name: "MM New", Email: "new@t", PasswordHash: "x", Role: db.RoleMatchmaker, ApprovalStatus: db.ApprovalPending},
		{ID: 10, Name: "Alice", Email: "alice@t", PasswordHash: "x", Role: db.RoleUser, Status: db.StatusMember, AssignedMatchmakerID: &mmA},
		{ID: 11, Name: "Paul", Email: "paul@t", PasswordHash: "x", Role: db.RoleUser, Status: db.StatusProspect},
	}
	require.NoError(t, gdb.Create(&users).Error)
	require.NoError(t, gdb.Create(&db.Profile{UserID: 10, AccountStatus: db.AccountActive}).Error)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	redisCache := cache.NewRedisCache(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appCtx := app.New(gdb, redisCache, notify.Noop{}, logger)

	return &fixture{
		svc:   accounts.NewService(appCtx),
		gdb:   gdb,
		admin: authz.Actor{ID: 1, Role: db.RoleAdmin},
		mmA:   authz.Actor{ID: 2, Role: db.RoleMatchmaker},
		mmB:   authz.Actor{ID: 3, Role: db.RoleMatchmaker},
		alice: authz.Actor{ID: 10, Role: db.RoleUser},
		paul:  authz.Actor{ID: 11, Role: db.RoleUser},
	}
}

func (f *fixture) profileOf(t *testing.T, userID uint64) db.Profile {
	t.Helper()
	var p db.Profile
	require.NoError(t, f.gdb.Where("user_id = ?", userID).First(&p).Error)
	return p
}

func TestDeactivateByOwningMatchmaker(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	require.NoError(t, f.svc.Deactivate(ctx, f.mmA, 10, "inactive 3 months"))

	p := f.profileOf(t, 10)
	assert.Equal(t, db.AccountDeactivated, p.AccountStatus)
	require.NotNil(t, p.DeactivationReason)
	assert.Equal(t, "inactive 3 months", *p.DeactivationReason)
	assert.Nil(t, p.ActivationReason)
}

func TestDeactivate_ScopeDenied(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	err := f.svc.Deactivate(ctx, f.mmB, 10, "not my client but still")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))

	// no side effects
	p := f.profileOf(t, 10)
	assert.Equal(t, db.AccountActive, p.AccountStatus)
	assert.Nil(t, p.DeactivationReason)
}

func TestDeactivate_MatchmakerCannotTargetProspect(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	err := f.svc.Deactivate(ctx, f.mmA, 11, "reason")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestActivate_ReasonValidation(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	err := f.svc.Activate(ctx, f.admin, 10, "   ")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	err = f.svc.Activate(ctx, f.admin, 10, strings.Repeat("a", 1001))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestAdminDeactivatesProspect_ImplicitProfile(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	// Paul has no profile row; admin may target any account
	require.NoError(t, f.svc.Deactivate(ctx, f.admin, 11, "duplicate registration"))

	p := f.profileOf(t, 11)
	assert.Equal(t, db.AccountDeactivated, p.AccountStatus)
	require.NotNil(t, p.DeactivationReason)
	assert.Nil(t, p.ActivationReason)
}

func TestReasonsNeverBothSet(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	require.NoError(t, f.svc.Deactivate(ctx, f.admin, 10, "off"))
	require.NoError(t, f.svc.Activate(ctx, f.admin, 10, "on"))
	require.NoError(t, f.svc.Deactivate(ctx, f.admin, 10, "off again"))

	p := f.profileOf(t, 10)
	assert.Nil(t, p.ActivationReason)
	require.NotNil(t, p.DeactivationReason)
	assert.Equal(t, "off again", *p.DeactivationReason)
}

func TestSubmitReactivation_RequiresDeactivatedProfile(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	_, err := f.svc.SubmitReactivation(ctx, f.alice, "let me back in")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	var count int64
	require.NoError(t, f.gdb.Model(&db.ReactivationRequest{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSubmitReactivation_SinglePending(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	require.NoError(t, f.svc.Deactivate(ctx, f.mmA, 10, "inactive"))

	_, err := f.svc.SubmitReactivation(ctx, f.alice, "I am back")
	require.NoError(t, err)

	_, err = f.svc.SubmitReactivation(ctx, f.alice, "still back")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestSubmitReactivation_StaffDenied(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	_, err := f.svc.SubmitReactivation(ctx, f.mmA, "why not")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestReviewReactivation_ApproveReactivates(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	require.NoError(t, f.svc.Deactivate(ctx, f.mmA, 10, "inactive"))
	req, err := f.svc.SubmitReactivation(ctx, f.alice, "I am back")
	require.NoError(t, err)

	require.NoError(t, f.svc.ReviewReactivation(ctx, f.mmA, req.ID, accounts.DecisionApprove, "Bon dossier"))

	p := f.profileOf(t, 10)
	assert.Equal(t, db.AccountActive, p.AccountStatus)
	require.NotNil(t, p.ActivationReason)
	assert.Equal(t, "Réactivé via demande de réactivation - Bon dossier", *p.ActivationReason)
	assert.Nil(t, p.DeactivationReason)

	var got db.ReactivationRequest
	require.NoError(t, f.gdb.First(&got, req.ID).Error)
	assert.Equal(t, db.RequestApproved, got.Status)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, uint64(2), *got.ReviewedBy)
}

func TestReviewReactivation_ApproveDefaultNotes(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	require.NoError(t, f.svc.Deactivate(ctx, f.mmA, 10, "inactive"))
	req, err := f.svc.SubmitReactivation(ctx, f.alice, "I am back")
	require.NoError(t, err)

	require.NoError(t, f.svc.ReviewReactivation(ctx, f.admin, req.ID, accounts.DecisionApprove, ""))

	p := f.profileOf(t, 10)
	require.NotNil(t, p.ActivationReason)
	assert.Equal(t, "Réactivé via demande de réactivation - Approuvé", *p.ActivationReason)
}

func TestReviewReactivation_RejectLeavesDeactivated(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	require.NoError(t, f.svc.Deactivate(ctx, f.mmA, 10, "inactive"))
	req, err := f.svc.SubmitReactivation(ctx, f.alice, "I am back")
	require.NoError(t, err)

	require.NoError(t, f.svc.ReviewReactivation(ctx, f.mmA, req.ID, accounts.DecisionReject, "insufficient"))

	p := f.profileOf(t, 10)
	assert.Equal(t, db.AccountDeactivated, p.AccountStatus)

	var got db.ReactivationRequest
	require.NoError(t, f.gdb.First(&got, req.ID).Error)
	assert.Equal(t, db.RequestRejected, got.Status)
}

func TestReviewReactivation_WrongMatchmakerDenied(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	require.NoError(t, f.svc.Deactivate(ctx, f.mmA, 10, "inactive"))
	req, err := f.svc.SubmitReactivation(ctx, f.alice, "I am back")
	require.NoError(t, err)

	err = f.svc.ReviewReactivation(ctx, f.mmB, req.ID, accounts.DecisionApprove, "")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestReviewReactivation_Terminal(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	require.NoError(t, f.svc.Deactivate(ctx, f.mmA, 10, "inactive"))
	req, err := f.svc.SubmitReactivation(ctx, f.alice, "I am back")
	require.NoError(t, err)

	require.NoError(t, f.svc.ReviewReactivation(ctx, f.mmA, req.ID, accounts.DecisionReject, "no"))

	err = f.svc.ReviewReactivation(ctx, f.mmA, req.ID, accounts.DecisionApprove, "on second thought")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestAssign_PromotesProspect(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	require.NoError(t, f.svc.Assign(ctx, f.admin, 11, 3))

	var got db.User
	require.NoError(t, f.gdb.First(&got, 11).Error)
	require.NotNil(t, got.AssignedMatchmakerID)
	assert.Equal(t, uint64(3), *got.AssignedMatchmakerID)
	assert.Equal(t, db.StatusMember, got.Status)
}

func TestAssign_RequiresApprovedMatchmaker(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	err := f.svc.Assign(ctx, f.admin, 11, 4)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestAssign_MatchmakerDenied(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	err := f.svc.Assign(ctx, f.mmA, 11, 2)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestUnassign_OwningMatchmaker(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	require.NoError(t, f.svc.Unassign(ctx, f.mmA, 10))

	var got db.User
	require.NoError(t, f.gdb.First(&got, 10).Error)
	assert.Nil(t, got.AssignedMatchmakerID)
}

func TestApproveStaff_AdminOnly(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	require.NoError(t, f.svc.ApproveStaff(ctx, f.admin, 4, true))

	var got db.User
	require.NoError(t, f.gdb.First(&got, 4).Error)
	assert.Equal(t, db.ApprovalApproved, got.ApprovalStatus)

	err := f.svc.ApproveStaff(ctx, f.mmA, 3, false)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}
