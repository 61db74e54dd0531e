// Package memstore provides in-memory repositories with the same contracts
// as internal/store, for service and handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/esgportal/apiserver/internal/store"
	"github.com/esgportal/apiserver/types"
)

// DB is the shared state behind all repositories of one store.
type DB struct {
	mu           sync.Mutex
	nextID       int64
	users        map[int64]types.User
	companies    map[int64]types.Company
	entitlements map[int64]types.Entitlement
	requests     map[int64]types.AccessRequest
	notes        map[int64]types.Note
	funds        map[int64]types.Fund
}

func New() *DB {
	return &DB{
		users:        make(map[int64]types.User),
		companies:    make(map[int64]types.Company),
		entitlements: make(map[int64]types.Entitlement),
		requests:     make(map[int64]types.AccessRequest),
		notes:        make(map[int64]types.Note),
		funds:        make(map[int64]types.Fund),
	}
}

func (db *DB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *DB) Users() *Users                   { return &Users{db: db} }
func (db *DB) Companies() *Companies           { return &Companies{db: db} }
func (db *DB) Entitlements() *Entitlements     { return &Entitlements{db: db} }
func (db *DB) AccessRequests() *AccessRequests { return &AccessRequests{db: db} }
func (db *DB) Notes() *Notes                   { return &Notes{db: db} }
func (db *DB) Funds() *Funds                   { return &Funds{db: db} }

// EntitlementCount returns the number of ledger rows for a user.
func (db *DB) EntitlementCount(userID int64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, e := range db.entitlements {
		if e.UserID == userID {
			n++
		}
	}
	return n
}

func fold(s string) string {
	return cases.Fold().String(s)
}

func contains(haystack, needle string) bool {
	return strings.Contains(fold(haystack), fold(needle))
}

type Users struct{ db *DB }

func (r *Users) GetByID(ctx context.Context, id int64) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	user, ok := r.db.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *Users) GetByUsername(ctx context.Context, username string) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, user := range r.db.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *Users) List(ctx context.Context, search string) ([]types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	users := make([]types.User, 0)
	for _, u := range r.db.users {
		if search == "" || contains(u.Username, search) || contains(u.Email, search) ||
			contains(u.FirstName, search) || contains(u.LastName, search) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (r *Users) Create(ctx context.Context, user types.User) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	now := time.Now()
	user.ID = r.db.id()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.db.users[user.ID] = user
	return user, nil
}

func (r *Users) Update(ctx context.Context, user types.User) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range r.db.users {
		if id != user.ID && (existing.Username == user.Username || existing.Email == user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	user.UpdatedAt = time.Now()
	r.db.users[user.ID] = user
	return user, nil
}

func (r *Users) DeleteWithDependents(ctx context.Context, id int64) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[id]; !ok {
		return 0, store.ErrNotFound
	}
	removed := 0
	for eid, e := range r.db.entitlements {
		if e.UserID == id {
			delete(r.db.entitlements, eid)
			removed++
		} else if e.GrantedBy != nil && *e.GrantedBy == id {
			e.GrantedBy = nil
			r.db.entitlements[eid] = e
		}
	}
	for rid, req := range r.db.requests {
		if req.UserID == id {
			delete(r.db.requests, rid)
		}
	}
	for nid, n := range r.db.notes {
		if n.AuthorID == id {
			delete(r.db.notes, nid)
		}
	}
	delete(r.db.users, id)
	return removed, nil
}

type Companies struct{ db *DB }

func matchesCompany(c types.Company, sector string, grade types.Grade, search string, hasReport *bool) bool {
	if sector != "" && fold(c.Sector) != fold(sector) && fold(c.ESGSector) != fold(sector) {
		return false
	}
	if grade != "" && c.Grade != grade {
		return false
	}
	if search != "" && !contains(c.Name, search) && !contains(c.ISIN, search) {
		return false
	}
	if hasReport != nil && c.HasArtifact() != *hasReport {
		return false
	}
	return true
}

func (r *Companies) List(ctx context.Context, filter types.CompanyFilter) ([]types.Company, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	companies := make([]types.Company, 0)
	for _, c := range r.db.companies {
		if c.Name != "" && matchesCompany(c, filter.Sector, filter.Grade, filter.Search, filter.HasReport) {
			companies = append(companies, c)
		}
	}
	sort.Slice(companies, func(i, j int) bool {
		if companies[i].Name != companies[j].Name {
			return companies[i].Name < companies[j].Name
		}
		return companies[i].ISIN < companies[j].ISIN
	})
	return companies, nil
}

func (r *Companies) GetByID(ctx context.Context, id int64) (types.Company, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.companies[id]
	if !ok {
		return types.Company{}, store.ErrNotFound
	}
	return c, nil
}

func (r *Companies) GetByISIN(ctx context.Context, isin string) (types.Company, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.companies {
		if c.ISIN == isin {
			return c, nil
		}
	}
	return types.Company{}, store.ErrNotFound
}

func (r *Companies) FindByName(ctx context.Context, name string) ([]types.Company, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var companies []types.Company
	for _, c := range r.db.companies {
		if fold(c.Name) == fold(name) {
			companies = append(companies, c)
		}
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i].ISIN < companies[j].ISIN })
	return companies, nil
}

func (r *Companies) Create(ctx context.Context, company types.Company) (types.Company, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.companies {
		if c.ISIN == company.ISIN {
			return types.Company{}, store.ErrConflict
		}
	}
	now := time.Now()
	company.ID = r.db.id()
	company.CreatedAt = now
	company.UpdatedAt = now
	r.db.companies[company.ID] = company
	return company, nil
}

func (r *Companies) Update(ctx context.Context, company types.Company) (types.Company, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.companies[company.ID]
	if !ok {
		return types.Company{}, store.ErrNotFound
	}
	company.ISIN = existing.ISIN
	company.CreatedAt = existing.CreatedAt
	company.UpdatedAt = time.Now()
	r.db.companies[company.ID] = company
	return company, nil
}

func (r *Companies) SetReport(ctx context.Context, id int64, filename string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.companies[id]
	if !ok {
		return store.ErrNotFound
	}
	c.PDFFilename = filename
	c.HasPDFReport = filename != ""
	c.UpdatedAt = time.Now()
	r.db.companies[id] = c
	return nil
}

type Funds struct{ db *DB }

func (r *Funds) List(ctx context.Context) ([]types.Fund, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	funds := make([]types.Fund, 0, len(r.db.funds))
	for _, f := range r.db.funds {
		funds = append(funds, f)
	}
	sort.Slice(funds, func(i, j int) bool { return funds[i].Name < funds[j].Name })
	return funds, nil
}

func (r *Funds) GetByName(ctx context.Context, name string) (types.Fund, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, f := range r.db.funds {
		if f.Name == name {
			return f, nil
		}
	}
	return types.Fund{}, store.ErrNotFound
}

func (r *Funds) Create(ctx context.Context, fund types.Fund) (types.Fund, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, f := range r.db.funds {
		if f.Name == fund.Name {
			return types.Fund{}, store.ErrConflict
		}
	}
	now := time.Now()
	fund.ID = r.db.id()
	fund.CreatedAt = now
	fund.UpdatedAt = now
	r.db.funds[fund.ID] = fund
	return fund, nil
}

func (r *Funds) Update(ctx context.Context, fund types.Fund) (types.Fund, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.funds[fund.ID]
	if !ok {
		return types.Fund{}, store.ErrNotFound
	}
	fund.Name = existing.Name
	fund.CreatedAt = existing.CreatedAt
	fund.UpdatedAt = time.Now()
	r.db.funds[fund.ID] = fund
	return fund, nil
}

type Entitlements struct{ db *DB }

func (r *Entitlements) Insert(ctx context.Context, e types.Entitlement) (types.Entitlement, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.entitlements {
		if existing.UserID == e.UserID && existing.CompanyID == e.CompanyID {
			return existing, false, nil
		}
	}
	e.ID = r.db.id()
	e.CreatedAt = time.Now()
	r.db.entitlements[e.ID] = e
	return e, true, nil
}

func (r *Entitlements) Get(ctx context.Context, id int64) (types.Entitlement, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.entitlements[id]
	if !ok {
		return types.Entitlement{}, store.ErrNotFound
	}
	return e, nil
}

func (r *Entitlements) Exists(ctx context.Context, userID, companyID int64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.db.entitlements {
		if e.UserID == userID && e.CompanyID == companyID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Entitlements) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.entitlements[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.db.entitlements, id)
	return nil
}

func (r *Entitlements) DeleteByUser(ctx context.Context, userID int64) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	removed := 0
	for id, e := range r.db.entitlements {
		if e.UserID == userID {
			delete(r.db.entitlements, id)
			removed++
		}
	}
	return removed, nil
}

func (r *Entitlements) ListForUser(ctx context.Context, userID int64, filter types.EntitlementFilter) ([]types.EntitlementView, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.views(func(e types.Entitlement, c types.Company) bool {
		return e.UserID == userID && matchesCompany(c, filter.Sector, filter.Grade, filter.Search, filter.HasReport)
	}), nil
}

func (r *Entitlements) ListAll(ctx context.Context) ([]types.EntitlementView, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.views(func(types.Entitlement, types.Company) bool { return true }), nil
}

// views joins entitlements with current user and company rows. Caller holds the lock.
func (r *Entitlements) views(keep func(types.Entitlement, types.Company) bool) []types.EntitlementView {
	views := make([]types.EntitlementView, 0)
	for _, e := range r.db.entitlements {
		c := r.db.companies[e.CompanyID]
		if !keep(e, c) {
			continue
		}
		u := r.db.users[e.UserID]
		view := types.EntitlementView{
			ID:           e.ID,
			UserID:       e.UserID,
			Username:     u.Username,
			UserEmail:    u.Email,
			CompanyID:    c.ID,
			ISIN:         c.ISIN,
			CompanyName:  c.Name,
			Sector:       c.Sector,
			ESGSector:    c.ESGSector,
			Grade:        c.Grade,
			HasPDFReport: c.HasArtifact(),
			Note:         e.Note,
			CreatedAt:    e.CreatedAt,
		}
		if e.GrantedBy != nil {
			view.GrantedBy = r.db.users[*e.GrantedBy].Username
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID > views[j].ID })
	return views
}

type AccessRequests struct{ db *DB }

func (r *AccessRequests) Create(ctx context.Context, req types.AccessRequest) (types.AccessRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if req.Status == "" {
		req.Status = types.AccessRequestPending
	}
	req.ID = r.db.id()
	req.CreatedAt = time.Now()
	r.db.requests[req.ID] = req
	return req, nil
}

func (r *AccessRequests) join(req types.AccessRequest) types.AccessRequest {
	req.Username = r.db.users[req.UserID].Username
	c := r.db.companies[req.CompanyID]
	req.CompanyName = c.Name
	req.ISIN = c.ISIN
	return req
}

func (r *AccessRequests) Get(ctx context.Context, id int64) (types.AccessRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	req, ok := r.db.requests[id]
	if !ok {
		return types.AccessRequest{}, store.ErrNotFound
	}
	return r.join(req), nil
}

func (r *AccessRequests) ListByStatus(ctx context.Context, status types.AccessRequestStatus) ([]types.AccessRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	requests := make([]types.AccessRequest, 0)
	for _, req := range r.db.requests {
		if req.Status == status {
			requests = append(requests, r.join(req))
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID < requests[j].ID })
	return requests, nil
}

func (r *AccessRequests) Resolve(ctx context.Context, id int64, status types.AccessRequestStatus, resolvedBy int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	req, ok := r.db.requests[id]
	if !ok || req.Status != types.AccessRequestPending {
		return store.ErrNotFound
	}
	now := time.Now()
	req.Status = status
	req.ResolvedAt = &now
	req.ResolvedBy = &resolvedBy
	r.db.requests[id] = req
	return nil
}

type Notes struct{ db *DB }

func (r *Notes) ListByAuthor(ctx context.Context, authorID int64) ([]types.Note, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	notes := make([]types.Note, 0)
	for _, n := range r.db.notes {
		if n.AuthorID == authorID {
			n.AuthorName = r.db.users[n.AuthorID].Username
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID > notes[j].ID })
	return notes, nil
}

func (r *Notes) Create(ctx context.Context, note types.Note) (types.Note, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	note.ID = r.db.id()
	note.CreatedAt = time.Now()
	r.db.notes[note.ID] = note
	return note, nil
}

func (r *Notes) Update(ctx context.Context, note types.Note) (types.Note, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.notes[note.ID]
	if !ok || existing.AuthorID != note.AuthorID {
		return types.Note{}, store.ErrNotFound
	}
	note.CreatedAt = existing.CreatedAt
	r.db.notes[note.ID] = note
	return note, nil
}

func (r *Notes) Delete(ctx context.Context, id, authorID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.notes[id]
	if !ok || existing.AuthorID != authorID {
		return store.ErrNotFound
	}
	delete(r.db.notes, id)
	return nil
}
