package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/esgportal/apiserver/internal/storage"
	"github.com/esgportal/apiserver/internal/testutil/memstore"
	"github.com/esgportal/apiserver/types"
)

const testPDF = "%PDF-1.4\n%test report\n"

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
	err    error
}

func (p *recordingPublisher) PublishJSON(ctx context.Context, channel string, v any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, v)
	return "msg-1", nil
}

type fixture struct {
	db        *memstore.DB
	artifacts *storage.Storage
	users     *UserService
	catalog   *CatalogService
	ledger    *LedgerService
	gateway   *GatewayService
	admin     *AdminService
	requests  *RequestService
	notes     *NoteService
	publisher *recordingPublisher

	alice types.User
	bob   types.User
	staff types.User

	acme    types.Company
	beta    types.Company
	noPDF   types.Company
	missing types.Company
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db := memstore.New()
	artifacts := storage.NewStorage(storage.NewLocalStorage(t.TempDir()))
	require.NoError(t, artifacts.EnsureBucket(ctx))

	f := &fixture{
		db:        db,
		artifacts: artifacts,
		publisher: &recordingPublisher{},
	}
	f.users = NewUserService(db.Users())
	f.catalog = NewCatalogService(db.Companies(), db.Funds(), artifacts)
	f.ledger = NewLedgerService(db.Users(), f.catalog, db.Entitlements())
	f.gateway = NewGatewayService(f.catalog, f.ledger, artifacts)
	f.admin = NewAdminService(db.Users())
	f.requests = NewRequestService(db.AccessRequests(), f.catalog, f.ledger, f.publisher, "report-access-requests")
	f.notes = NewNoteService(db.Notes())

	f.alice = f.addUser(t, "alice", false)
	f.bob = f.addUser(t, "bob", false)
	f.staff = f.addUser(t, "admin", true)

	f.acme = f.addCompany(t, "INE000A01001", "Acme Corp", types.GradeBPlus, true)
	f.beta = f.addCompany(t, "INE111", "Beta Industries", types.GradeA, true)
	f.noPDF = f.addCompany(t, "INE222", "Gamma Textiles", types.GradeC, false)

	f.missing = f.addCompany(t, "INE333", "Delta Power", types.GradeD, false)
	require.NoError(t, db.Companies().SetReport(ctx, f.missing.ID, storage.ReportKey(f.missing.ISIN)))
	f.missing, _ = db.Companies().GetByID(ctx, f.missing.ID)
	return f
}

func (f *fixture) addUser(t *testing.T, username string, staff bool) types.User {
	t.Helper()
	user, err := f.db.Users().Create(context.Background(), types.User{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    strings.ToUpper(username[:1]) + username[1:],
		IsStaff:      staff,
		PasswordHash: "unused",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) addCompany(t *testing.T, isin, name string, grade types.Grade, withReport bool) types.Company {
	t.Helper()
	ctx := context.Background()
	company, err := f.db.Companies().Create(ctx, types.Company{
		ISIN:     isin,
		Name:     name,
		Sector:   "Energy",
		Grade:    grade,
		ESGScore: decimal.NewNullDecimal(decimal.RequireFromString("61.5")),
	})
	require.NoError(t, err)
	if withReport {
		company, err = f.catalog.UploadReport(ctx, isin, []byte(testPDF))
		require.NoError(t, err)
	}
	return company
}

func session(u types.User) Session {
	return SessionFor(u)
}

func requireNotFound(t *testing.T, err error, kind string) *NotFoundError {
	t.Helper()
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf), "expected NotFoundError, got %v", err)
	require.Equal(t, kind, nf.Kind)
	return nf
}
