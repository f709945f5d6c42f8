package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/agency-backoffice/internal/db"
	apperr "github.com/oggyb/agency-backoffice/internal/errors"
	"github.com/oggyb/agency-backoffice/internal/repository"
)

func TestCreatePending_OnePendingPerUser(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewReactivationRepository(gdb)

	req, err := repo.CreatePending(ctx, 7, "please")
	require.NoError(t, err)
	assert.Equal(t, db.RequestPending, req.Status)

	_, err = repo.CreatePending(ctx, 7, "please again")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	// a different user is unaffected
	_, err = repo.CreatePending(ctx, 8, "please")
	assert.NoError(t, err)

	var count int64
	require.NoError(t, gdb.Model(&db.ReactivationRequest{}).Where("user_id = ?", 7).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreatePending_AllowedAfterClose(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewReactivationRepository(gdb)

	req, err := repo.CreatePending(ctx, 7, "please")
	require.NoError(t, err)
	require.NoError(t, repo.Close(ctx, req.ID, db.RequestRejected, 1, "no", time.Now()))

	_, err = repo.CreatePending(ctx, 7, "second try")
	assert.NoError(t, err)
}

func TestClose_TerminalOnce(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewReactivationRepository(gdb)

	req, err := repo.CreatePending(ctx, 7, "please")
	require.NoError(t, err)

	require.NoError(t, repo.Close(ctx, req.ID, db.RequestApproved, 1, "ok", time.Now()))

	err = repo.Close(ctx, req.ID, db.RequestRejected, 2, "no", time.Now())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, db.RequestApproved, got.Status)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, uint64(1), *got.ReviewedBy)
	assert.NotNil(t, got.ReviewedAt)
}

func TestListPendingForReviewer_Scoping(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewReactivationRepository(gdb)

	mmA, mmB := uint64(2), uint64(3)
	users := []db.User{
		{ID: 10, Name: "a", Email: "a@t", PasswordHash: "x", Role: db.RoleUser, Status: db.StatusMember, AssignedMatchmakerID: &mmA},
		{ID: 11, Name: "b", Email: "b@t", PasswordHash: "x", Role: db.RoleUser, Status: db.StatusMember, AssignedMatchmakerID: &mmB},
	}
	require.NoError(t, gdb.Create(&users).Error)

	_, err := repo.CreatePending(ctx, 10, "r1")
	require.NoError(t, err)
	_, err = repo.CreatePending(ctx, 11, "r2")
	require.NoError(t, err)

	all, err := repo.ListPendingForReviewer(ctx, 1, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := repo.ListPendingForReviewer(ctx, mmA, false)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, uint64(10), mine[0].UserID)
}
