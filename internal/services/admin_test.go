package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esgportal/apiserver/types"
)

func TestDeleteUserCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.GrantBatch(ctx, f.alice.ID, []string{f.acme.ISIN, f.beta.ISIN}, &f.staff.ID, "")
	require.NoError(t, err)
	_, err = f.requests.Submit(ctx, session(f.alice), f.noPDF.ISIN, "")
	require.NoError(t, err)
	_, err = f.notes.Create(ctx, session(f.alice), "t", "c")
	require.NoError(t, err)

	removed, err := f.admin.DeleteUser(ctx, session(f.staff), f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, f.db.EntitlementCount(f.alice.ID))

	_, err = f.ledger.ListForUser(ctx, f.alice.ID, types.EntitlementFilter{})
	requireNotFound(t, err, "user")

	pending, err := f.requests.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.admin.DeleteUser(ctx, session(f.staff), f.alice.ID)
	requireNotFound(t, err, "user")
}

func TestDeleteUserRefusesStaffAndSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.admin.DeleteUser(ctx, session(f.staff), f.staff.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	other := f.addUser(t, "auditor", true)
	_, err = f.admin.DeleteUser(ctx, session(f.staff), other.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListUsersSearch(t *testing.T) {
	f := newFixture(t)

	users, err := f.admin.ListUsers(context.Background(), "  ALI ")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	users, err = f.admin.ListUsers(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, users, 3)
}
