package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esgportal/apiserver/types"
)

func newMock(t *testing.T) (*EntitlementRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEntitlementRepository(db), mock
}

func TestEntitlementInsertCreates(t *testing.T) {
	repo, mock := newMock(t)
	admin := int64(9)

	mock.ExpectQuery("INSERT INTO entitlements .* ON CONFLICT \\(user_id, company_id\\) DO NOTHING").
		WithArgs(int64(1), int64(2), sqlmock.AnyArg(), "quarterly", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(41)))

	e, created, err := repo.Insert(context.Background(), types.Entitlement{UserID: 1, CompanyID: 2, GrantedBy: &admin, Note: "quarterly"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(41), e.ID)
	assert.False(t, e.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitlementInsertExistingReturnsRow(t *testing.T) {
	repo, mock := newMock(t)
	grantedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO entitlements").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT id, user_id, company_id, granted_by, note, created_at FROM entitlements WHERE user_id = \\$1 AND company_id = \\$2").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "company_id", "granted_by", "note", "created_at"}).
			AddRow(int64(7), int64(1), int64(2), nil, "first grant", grantedAt))

	e, created, err := repo.Insert(context.Background(), types.Entitlement{UserID: 1, CompanyID: 2, Note: "second grant"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(7), e.ID)
	assert.Equal(t, "first grant", e.Note)
	assert.Nil(t, e.GrantedBy)
	assert.Equal(t, grantedAt, e.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitlementExists(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(1), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.Exists(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitlementDelete(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("DELETE FROM entitlements WHERE id = \\$1").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM entitlements WHERE id = \\$1").
		WithArgs(int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 5))
	assert.ErrorIs(t, repo.Delete(context.Background(), 6), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitlementDeleteByUser(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("DELETE FROM entitlements WHERE user_id = \\$1").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteByUser(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntitlementListForUserAppliesFilters(t *testing.T) {
	repo, mock := newMock(t)
	hasReport := true
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE e.user_id = \\$1 AND .*c.grade = \\$3 AND .*ILIKE \\$4.* = \\$5 ORDER BY e.created_at DESC").
		WithArgs(int64(1), "Energy", "A", "%acme\\_%", true).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "username", "email", "company_id", "isin", "name", "sector", "esg_sector",
			"grade", "has_report", "granted_by", "note", "created_at",
		}).AddRow(int64(7), int64(1), "alice", "alice@example.com", int64(2), "INE000A01", "Acme_ Ltd", "Energy", "Energy",
			"A", true, "admin", "", at))

	views, err := repo.ListForUser(context.Background(), 1, types.EntitlementFilter{
		Sector:    "Energy",
		Grade:     types.GradeA,
		Search:    "acme_",
		HasReport: &hasReport,
	})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Acme_ Ltd", views[0].CompanyName)
	assert.Equal(t, types.GradeA, views[0].Grade)
	assert.Equal(t, "admin", views[0].GrantedBy)
	assert.True(t, views[0].HasPDFReport)
	require.NoError(t, mock.ExpectationsWereMet())
}
