package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fund is a rated investment fund listed in the public catalog.
type Fund struct {
	ID int64 `json:"id" db:"id"`

	// Name is unique across the catalog and is the sync key for funds.
	Name string `json:"fund_name" db:"name"`

	Score      decimal.NullDecimal `json:"score" db:"score"`
	Percentage string              `json:"percentage" db:"percentage"`
	Grade      Grade               `json:"grade" db:"grade"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
