package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Company represents one rated entity in the catalog.
// Catalog rows are owned by the external data sync; the API never
// mutates them in response to user actions.
type Company struct {
	// ID is the internal identifier of the company.
	ID int64 `json:"id" db:"id"`

	// ISIN is the stable international securities identifier and the
	// natural key used by admins and the catalog sync.
	ISIN string `json:"isin" db:"isin"`

	// Name is the display name of the company.
	Name string `json:"company_name" db:"name"`

	// Sector is the market sector reported by the exchange listing.
	Sector string `json:"sector" db:"sector"`

	// ESGSector is the sector classification used for ESG peer comparison.
	ESGSector string `json:"esg_sector" db:"esg_sector"`

	// Industry is the finer-grained industry classification.
	Industry string `json:"industry" db:"industry"`

	// BSESymbol is the Bombay Stock Exchange ticker, if listed.
	BSESymbol string `json:"bse_symbol" db:"bse_symbol"`

	// NSESymbol is the National Stock Exchange ticker, if listed.
	NSESymbol string `json:"nse_symbol" db:"nse_symbol"`

	// MarketCap is the market capitalisation as provided by the source sheet.
	MarketCap string `json:"market_cap" db:"market_cap"`

	// EScore is the environmental pillar score.
	EScore decimal.NullDecimal `json:"e_score" db:"e_score"`

	// SScore is the social pillar score.
	SScore decimal.NullDecimal `json:"s_score" db:"s_score"`

	// GScore is the governance pillar score.
	GScore decimal.NullDecimal `json:"g_score" db:"g_score"`

	// ESGScore is the composite ESG score.
	ESGScore decimal.NullDecimal `json:"esg_score" db:"esg_score"`

	// Composite is the composite rating as published in the source sheet.
	Composite string `json:"composite" db:"composite"`

	// Positive and Negative are the positive and negative screen results.
	Positive string `json:"positive" db:"positive"`
	Negative string `json:"negative" db:"negative"`

	// Controversy is the controversy rating.
	Controversy string `json:"controversy" db:"controversy"`

	// Grade is the letter rating assigned to the composite score.
	Grade Grade `json:"grade" db:"grade"`

	// PDFFilename is the object key of the stored report artifact.
	// It is never exposed as a public URL; reports are served through
	// the access gateway only.
	PDFFilename string `json:"pdf_filename,omitempty" db:"pdf_filename"`

	// HasPDFReport indicates whether a report artifact is stored.
	HasPDFReport bool `json:"has_pdf_report" db:"has_pdf_report"`

	// CreatedAt is the timestamp when the company was first synced.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent sync that changed the row.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasArtifact reports whether the company has a stored report to serve.
func (c Company) HasArtifact() bool {
	return c.HasPDFReport && strings.TrimSpace(c.PDFFilename) != ""
}

// CompanyFilter narrows catalog listings.
type CompanyFilter struct {
	Sector    string
	Grade     Grade
	Search    string
	HasReport *bool
}

// Grade is a letter rating on the fixed ordered scale A+ (best) to D (worst).
type Grade string

// Supported grades, best first.
const (
	GradeAPlus  Grade = "A+"
	GradeA      Grade = "A"
	GradeAMinus Grade = "A-"
	GradeBPlus  Grade = "B+"
	GradeB      Grade = "B"
	GradeBMinus Grade = "B-"
	GradeCPlus  Grade = "C+"
	GradeC      Grade = "C"
	GradeCMinus Grade = "C-"
	GradeD      Grade = "D"
)

var gradeScale = []Grade{
	GradeAPlus, GradeA, GradeAMinus,
	GradeBPlus, GradeB, GradeBMinus,
	GradeCPlus, GradeC, GradeCMinus,
	GradeD,
}

// Grades returns the full scale, best first.
func Grades() []Grade {
	out := make([]Grade, len(gradeScale))
	copy(out, gradeScale)
	return out
}

// ParseGrade parses a letter grade, ignoring surrounding whitespace and case.
func ParseGrade(raw string) (Grade, error) {
	candidate := Grade(strings.ToUpper(strings.TrimSpace(raw)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid grade %q", raw)
}

// Rank returns the position of the grade on the scale (0 is best),
// or -1 for an unknown grade.
func (g Grade) Rank() int {
	for i, candidate := range gradeScale {
		if candidate == g {
			return i
		}
	}
	return -1
}

// Valid reports whether g is on the scale.
func (g Grade) Valid() bool {
	return g.Rank() >= 0
}

// Better reports whether g ranks strictly above other.
func (g Grade) Better(other Grade) bool {
	gr, or := g.Rank(), other.Rank()
	if gr < 0 {
		return false
	}
	if or < 0 {
		return true
	}
	return gr < or
}
