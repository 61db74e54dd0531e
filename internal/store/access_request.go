package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/esgportal/apiserver/types"
)

// AccessRequestRepository handles persistence for report access requests.
type AccessRequestRepository struct {
	db *sql.DB
}

func NewAccessRequestRepository(db *sql.DB) *AccessRequestRepository {
	return &AccessRequestRepository{db: db}
}

const accessRequestSelect = `
	SELECT r.id, r.user_id, u.username, r.company_id, c.name, c.isin, r.note, r.status,
	       r.correlation_id, r.created_at, r.resolved_at, r.resolved_by
	FROM access_requests r
	JOIN users u ON u.id = r.user_id
	JOIN companies c ON c.id = r.company_id`

func scanAccessRequest(row rowScanner) (types.AccessRequest, error) {
	var req types.AccessRequest
	var status string
	var resolvedAt sql.NullTime
	var resolvedBy sql.NullInt64
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.Username,
		&req.CompanyID,
		&req.CompanyName,
		&req.ISIN,
		&req.Note,
		&status,
		&req.CorrelationID,
		&req.CreatedAt,
		&resolvedAt,
		&resolvedBy,
	)
	if err != nil {
		return types.AccessRequest{}, err
	}
	req.Status = types.AccessRequestStatus(status)
	if resolvedAt.Valid {
		req.ResolvedAt = &resolvedAt.Time
	}
	if resolvedBy.Valid {
		req.ResolvedBy = &resolvedBy.Int64
	}
	return req, nil
}

func (r *AccessRequestRepository) Create(ctx context.Context, req types.AccessRequest) (types.AccessRequest, error) {
	req.CreatedAt = time.Now()
	if req.Status == "" {
		req.Status = types.AccessRequestPending
	}

	const query = `
		INSERT INTO access_requests (user_id, company_id, note, status, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		req.UserID,
		req.CompanyID,
		req.Note,
		string(req.Status),
		req.CorrelationID,
		req.CreatedAt,
	).Scan(&req.ID); err != nil {
		return types.AccessRequest{}, err
	}
	return req, nil
}

func (r *AccessRequestRepository) Get(ctx context.Context, id int64) (types.AccessRequest, error) {
	req, err := scanAccessRequest(r.db.QueryRowContext(ctx, accessRequestSelect+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.AccessRequest{}, ErrNotFound
		}
		return types.AccessRequest{}, err
	}
	return req, nil
}

// ListByStatus returns requests in the given state, oldest first.
func (r *AccessRequestRepository) ListByStatus(ctx context.Context, status types.AccessRequestStatus) ([]types.AccessRequest, error) {
	rows, err := r.db.QueryContext(ctx, accessRequestSelect+` WHERE r.status = $1 ORDER BY r.created_at, r.id`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]types.AccessRequest, 0)
	for rows.Next() {
		req, err := scanAccessRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

// Resolve moves a pending request to status. It returns ErrNotFound when
// no pending request with that id exists.
func (r *AccessRequestRepository) Resolve(ctx context.Context, id int64, status types.AccessRequestStatus, resolvedBy int64) error {
	const query = `
		UPDATE access_requests
		SET status = $1,
			resolved_at = $2,
			resolved_by = $3
		WHERE id = $4 AND status = 'pending'`
	result, err := r.db.ExecContext(ctx, query, string(status), time.Now(), resolvedBy, id)
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
