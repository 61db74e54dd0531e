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

const companyColumns = `id, isin, name, sector, esg_sector, industry, bse_symbol, nse_symbol, market_cap,
	e_score, s_score, g_score, esg_score, composite, positive, negative, controversy,
	grade, pdf_filename, has_pdf_report, created_at, updated_at`

// CompanyRepository handles persistence for the company catalog.
type CompanyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

func scanCompany(row rowScanner) (types.Company, error) {
	var company types.Company
	var grade string
	err := row.Scan(
		&company.ID,
		&company.ISIN,
		&company.Name,
		&company.Sector,
		&company.ESGSector,
		&company.Industry,
		&company.BSESymbol,
		&company.NSESymbol,
		&company.MarketCap,
		&company.EScore,
		&company.SScore,
		&company.GScore,
		&company.ESGScore,
		&company.Composite,
		&company.Positive,
		&company.Negative,
		&company.Controversy,
		&grade,
		&company.PDFFilename,
		&company.HasPDFReport,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
	company.Grade = types.Grade(grade)
	return company, err
}

// List returns catalog companies ordered by name.
func (r *CompanyRepository) List(ctx context.Context, filter types.CompanyFilter) ([]types.Company, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	conds = append(conds, `name <> ''`)
	if filter.Sector != "" {
		add(`(LOWER(sector) = LOWER($%[1]d) OR LOWER(esg_sector) = LOWER($%[1]d))`, filter.Sector)
	}
	if filter.Grade != "" {
		add(`grade = $%d`, string(filter.Grade))
	}
	if filter.Search != "" {
		add(`(name ILIKE $%[1]d OR isin ILIKE $%[1]d)`, "%"+escapeLike(filter.Search)+"%")
	}
	if filter.HasReport != nil {
		add(`(has_pdf_report AND pdf_filename <> '') = $%d`, *filter.HasReport)
	}

	query := `SELECT ` + companyColumns + ` FROM companies WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY name, isin`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	companies := make([]types.Company, 0)
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (types.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	company, err := scanCompany(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Company{}, ErrNotFound
		}
		return types.Company{}, err
	}
	return company, nil
}

func (r *CompanyRepository) GetByISIN(ctx context.Context, isin string) (types.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE isin = $1`
	company, err := scanCompany(r.db.QueryRowContext(ctx, query, isin))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Company{}, ErrNotFound
		}
		return types.Company{}, err
	}
	return company, nil
}

// FindByName returns every company whose name equals name, ignoring case.
func (r *CompanyRepository) FindByName(ctx context.Context, name string) ([]types.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE LOWER(name) = LOWER($1) ORDER BY isin`
	rows, err := r.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []types.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *CompanyRepository) Create(ctx context.Context, company types.Company) (types.Company, error) {
	now := time.Now()
	company.CreatedAt = now
	company.UpdatedAt = now

	const query = `
		INSERT INTO companies (isin, name, sector, esg_sector, industry, bse_symbol, nse_symbol, market_cap,
			e_score, s_score, g_score, esg_score, composite, positive, negative, controversy,
			grade, pdf_filename, has_pdf_report, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		company.ISIN,
		company.Name,
		company.Sector,
		company.ESGSector,
		company.Industry,
		company.BSESymbol,
		company.NSESymbol,
		company.MarketCap,
		company.EScore,
		company.SScore,
		company.GScore,
		company.ESGScore,
		company.Composite,
		company.Positive,
		company.Negative,
		company.Controversy,
		string(company.Grade),
		company.PDFFilename,
		company.HasPDFReport,
		company.CreatedAt,
		company.UpdatedAt,
	).Scan(&company.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Company{}, ErrConflict
		}
		return types.Company{}, err
	}
	return company, nil
}

func (r *CompanyRepository) Update(ctx context.Context, company types.Company) (types.Company, error) {
	company.UpdatedAt = time.Now()

	const query = `
		UPDATE companies
		SET name = $1,
			sector = $2,
			esg_sector = $3,
			industry = $4,
			bse_symbol = $5,
			nse_symbol = $6,
			market_cap = $7,
			e_score = $8,
			s_score = $9,
			g_score = $10,
			esg_score = $11,
			composite = $12,
			positive = $13,
			negative = $14,
			controversy = $15,
			grade = $16,
			pdf_filename = $17,
			has_pdf_report = $18,
			updated_at = $19
		WHERE id = $20`
	result, err := r.db.ExecContext(
		ctx,
		query,
		company.Name,
		company.Sector,
		company.ESGSector,
		company.Industry,
		company.BSESymbol,
		company.NSESymbol,
		company.MarketCap,
		company.EScore,
		company.SScore,
		company.GScore,
		company.ESGScore,
		company.Composite,
		company.Positive,
		company.Negative,
		company.Controversy,
		string(company.Grade),
		company.PDFFilename,
		company.HasPDFReport,
		company.UpdatedAt,
		company.ID,
	)
	if err != nil {
		return types.Company{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Company{}, err
	}
	if affected == 0 {
		return types.Company{}, ErrNotFound
	}
	return company, nil
}

// SetReport records the stored artifact for a company.
func (r *CompanyRepository) SetReport(ctx context.Context, id int64, filename string) error {
	const query = `
		UPDATE companies
		SET pdf_filename = $1,
			has_pdf_report = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, filename, filename != "", time.Now(), id)
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

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
