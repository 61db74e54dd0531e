package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/esgportal/apiserver/types"
)

// EntitlementRepository handles persistence for the entitlement ledger.
type EntitlementRepository struct {
	db *sql.DB
}

func NewEntitlementRepository(db *sql.DB) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

// Insert records an entitlement for (UserID, CompanyID). When the pair is
// already entitled the existing row is returned with created=false. The
// unique index on (user_id, company_id) arbitrates concurrent grants.
func (r *EntitlementRepository) Insert(ctx context.Context, e types.Entitlement) (types.Entitlement, bool, error) {
	e.CreatedAt = time.Now()

	const query = `
		INSERT INTO entitlements (user_id, company_id, granted_by, note, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, company_id) DO NOTHING
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query, e.UserID, e.CompanyID, e.GrantedBy, e.Note, e.CreatedAt).Scan(&e.ID)
	if err == nil {
		return e, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Entitlement{}, false, err
	}

	existing, err := r.GetByPair(ctx, e.UserID, e.CompanyID)
	if err != nil {
		return types.Entitlement{}, false, err
	}
	return existing, false, nil
}

func (r *EntitlementRepository) Get(ctx context.Context, id int64) (types.Entitlement, error) {
	const query = `
		SELECT id, user_id, company_id, granted_by, note, created_at
		FROM entitlements
		WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *EntitlementRepository) GetByPair(ctx context.Context, userID, companyID int64) (types.Entitlement, error) {
	const query = `
		SELECT id, user_id, company_id, granted_by, note, created_at
		FROM entitlements
		WHERE user_id = $1 AND company_id = $2`
	return r.getOne(ctx, query, userID, companyID)
}

func (r *EntitlementRepository) getOne(ctx context.Context, query string, args ...any) (types.Entitlement, error) {
	var e types.Entitlement
	var grantedBy sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&e.ID,
		&e.UserID,
		&e.CompanyID,
		&grantedBy,
		&e.Note,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Entitlement{}, ErrNotFound
		}
		return types.Entitlement{}, err
	}
	if grantedBy.Valid {
		e.GrantedBy = &grantedBy.Int64
	}
	return e, nil
}

// Exists reports whether the user is entitled to the company. It is
// served by the unique (user_id, company_id) index.
func (r *EntitlementRepository) Exists(ctx context.Context, userID, companyID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM entitlements WHERE user_id = $1 AND company_id = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, companyID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *EntitlementRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM entitlements WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUser removes every entitlement of a user and returns how many were removed.
func (r *EntitlementRepository) DeleteByUser(ctx context.Context, userID int64) (int, error) {
	const query = `DELETE FROM entitlements WHERE user_id = $1`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

const entitlementViewQuery = `
	SELECT e.id, e.user_id, u.username, u.email, e.company_id, c.isin, c.name, c.sector, c.esg_sector,
	       c.grade, (c.has_pdf_report AND c.pdf_filename <> ''), COALESCE(g.username, ''), e.note, e.created_at
	FROM entitlements e
	JOIN users u ON u.id = e.user_id
	JOIN companies c ON c.id = e.company_id
	LEFT JOIN users g ON g.id = e.granted_by`

// ListForUser returns the user's entitlements joined with the current
// catalog attributes, newest first.
func (r *EntitlementRepository) ListForUser(ctx context.Context, userID int64, filter types.EntitlementFilter) ([]types.EntitlementView, error) {
	conds := []string{`e.user_id = $1`}
	args := []any{userID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Sector != "" {
		add(`(LOWER(c.sector) = LOWER($%[1]d) OR LOWER(c.esg_sector) = LOWER($%[1]d))`, filter.Sector)
	}
	if filter.Grade != "" {
		add(`c.grade = $%d`, string(filter.Grade))
	}
	if filter.Search != "" {
		add(`(c.name ILIKE $%[1]d OR c.isin ILIKE $%[1]d)`, "%"+escapeLike(filter.Search)+"%")
	}
	if filter.HasReport != nil {
		add(`(c.has_pdf_report AND c.pdf_filename <> '') = $%d`, *filter.HasReport)
	}

	query := entitlementViewQuery + ` WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY e.created_at DESC, e.id DESC`
	return r.listViews(ctx, query, args...)
}

// ListAll returns every entitlement in the ledger, newest first.
func (r *EntitlementRepository) ListAll(ctx context.Context) ([]types.EntitlementView, error) {
	return r.listViews(ctx, entitlementViewQuery+` ORDER BY e.created_at DESC, e.id DESC`)
}

func (r *EntitlementRepository) listViews(ctx context.Context, query string, args ...any) ([]types.EntitlementView, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]types.EntitlementView, 0)
	for rows.Next() {
		var view types.EntitlementView
		var grade string
		if err := rows.Scan(
			&view.ID,
			&view.UserID,
			&view.Username,
			&view.UserEmail,
			&view.CompanyID,
			&view.ISIN,
			&view.CompanyName,
			&view.Sector,
			&view.ESGSector,
			&grade,
			&view.HasPDFReport,
			&view.GrantedBy,
			&view.Note,
			&view.CreatedAt,
		); err != nil {
			return nil, err
		}
		view.Grade = types.Grade(grade)
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return views, nil
}
