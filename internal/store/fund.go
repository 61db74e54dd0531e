package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/esgportal/apiserver/types"
)

const fundColumns = `id, name, score, percentage, grade, created_at, updated_at`

// FundRepository handles persistence for the fund catalog.
type FundRepository struct {
	db *sql.DB
}

func NewFundRepository(db *sql.DB) *FundRepository {
	return &FundRepository{db: db}
}

func scanFund(row rowScanner) (types.Fund, error) {
	var fund types.Fund
	var grade string
	err := row.Scan(
		&fund.ID,
		&fund.Name,
		&fund.Score,
		&fund.Percentage,
		&grade,
		&fund.CreatedAt,
		&fund.UpdatedAt,
	)
	fund.Grade = types.Grade(grade)
	return fund, err
}

// List returns all funds ordered by name.
func (r *FundRepository) List(ctx context.Context) ([]types.Fund, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+fundColumns+` FROM funds ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	funds := make([]types.Fund, 0)
	for rows.Next() {
		fund, err := scanFund(rows)
		if err != nil {
			return nil, err
		}
		funds = append(funds, fund)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return funds, nil
}

func (r *FundRepository) GetByName(ctx context.Context, name string) (types.Fund, error) {
	fund, err := scanFund(r.db.QueryRowContext(ctx, `SELECT `+fundColumns+` FROM funds WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Fund{}, ErrNotFound
		}
		return types.Fund{}, err
	}
	return fund, nil
}

func (r *FundRepository) Create(ctx context.Context, fund types.Fund) (types.Fund, error) {
	now := time.Now()
	fund.CreatedAt = now
	fund.UpdatedAt = now

	const query = `
		INSERT INTO funds (name, score, percentage, grade, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query,
		fund.Name,
		fund.Score,
		fund.Percentage,
		string(fund.Grade),
		fund.CreatedAt,
		fund.UpdatedAt,
	).Scan(&fund.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Fund{}, ErrConflict
		}
		return types.Fund{}, err
	}
	return fund, nil
}

func (r *FundRepository) Update(ctx context.Context, fund types.Fund) (types.Fund, error) {
	fund.UpdatedAt = time.Now()

	const query = `
		UPDATE funds
		SET score = $1,
			percentage = $2,
			grade = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query,
		fund.Score,
		fund.Percentage,
		string(fund.Grade),
		fund.UpdatedAt,
		fund.ID,
	)
	if err != nil {
		return types.Fund{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Fund{}, err
	}
	if affected == 0 {
		return types.Fund{}, ErrNotFound
	}
	return fund, nil
}
