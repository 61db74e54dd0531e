package types

import "time"

// Entitlement is a persisted grant of one user's access to one company's report.
// At most one entitlement exists per (user, company) pair.
type Entitlement struct {
	// ID is the unique identifier of the entitlement.
	ID int64 `json:"id" db:"id"`

	// UserID identifies the entitled user.
	UserID int64 `json:"user_id" db:"user_id"`

	// CompanyID identifies the company whose report is granted.
	CompanyID int64 `json:"company_id" db:"company_id"`

	// GrantedBy identifies the admin who granted access. It is nil when
	// the granting admin has since been deleted.
	GrantedBy *int64 `json:"granted_by" db:"granted_by"`

	// Note is an optional free-text admin note.
	Note string `json:"notes" db:"note"`

	// CreatedAt is the server-assigned grant timestamp.
	CreatedAt time.Time `json:"assigned_at" db:"created_at"`
}

// EntitlementView is an entitlement joined with the current user and
// company attributes at read time.
//
// Company attributes are deliberately not snapshotted into the
// entitlement row: a catalog re-sync must show up in every user's
// listing without re-granting. Do not denormalize them.
type EntitlementView struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	UserEmail    string    `json:"user_email"`
	CompanyID    int64     `json:"company_id"`
	ISIN         string    `json:"isin"`
	CompanyName  string    `json:"company_name"`
	Sector       string    `json:"sector"`
	ESGSector    string    `json:"esg_sector"`
	Grade        Grade     `json:"esg_rating"`
	HasPDFReport bool      `json:"has_pdf_report"`
	GrantedBy    string    `json:"assigned_by,omitempty"`
	Note         string    `json:"notes"`
	CreatedAt    time.Time `json:"assigned_at"`
}

// EntitlementFilter narrows a user's entitlement listing.
type EntitlementFilter struct {
	Sector    string
	Grade     Grade
	Search    string
	HasReport *bool
}
