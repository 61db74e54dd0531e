package types

import (
	"strconv"
	"time"
)

// AccessRequestStatus is the lifecycle state of an access request.
type AccessRequestStatus string

const (
	AccessRequestPending  AccessRequestStatus = "pending"
	AccessRequestApproved AccessRequestStatus = "approved"
	AccessRequestRejected AccessRequestStatus = "rejected"
)

// AccessRequest records a user asking for access to a company's report.
// It is informational only: it never grants access by itself. An admin
// approving it grants an Entitlement through the ledger.
type AccessRequest struct {
	// ID is the unique identifier of the request.
	ID int64 `json:"id" db:"id"`

	// UserID identifies the requesting user.
	UserID int64 `json:"user_id" db:"user_id"`

	// Username is joined from the users table for admin listings.
	Username string `json:"username,omitempty" db:"-"`

	// CompanyID identifies the requested company.
	CompanyID int64 `json:"company_id" db:"company_id"`

	// CompanyName and ISIN are joined from the catalog at read time.
	CompanyName string `json:"company_name,omitempty" db:"-"`
	ISIN        string `json:"isin,omitempty" db:"-"`

	// Note is the user's optional message to the admins.
	Note string `json:"notes" db:"note"`

	// Status is the current state of the request.
	Status AccessRequestStatus `json:"status" db:"status"`

	// CorrelationID ties the persisted request to its published notification.
	CorrelationID string `json:"correlation_id" db:"correlation_id"`

	// CreatedAt is when the request was submitted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// ResolvedAt is when an admin approved or rejected the request.
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`

	// ResolvedBy identifies the admin who resolved the request.
	ResolvedBy *int64 `json:"resolved_by,omitempty" db:"resolved_by"`
}

// AccessRequestEvent is the notification published when a request is submitted.
type AccessRequestEvent struct {
	CorrelationID string    `json:"correlation_id"`
	RequestID     int64     `json:"request_id"`
	UserID        int64     `json:"user_id"`
	Username      string    `json:"username"`
	ISIN          string    `json:"isin"`
	CompanyName   string    `json:"company_name"`
	Note          string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// MessageAttributes tags the published event with its correlation id and
// orders one user's requests relative to each other.
func (e AccessRequestEvent) MessageAttributes() map[string]string {
	return map[string]string{
		"correlation_id": e.CorrelationID,
		"ordering_key":   "user-" + strconv.FormatInt(e.UserID, 10),
		"isin":           e.ISIN,
	}
}
