package types

import "time"

// Note is a private free-text note kept by a user alongside their reports.
type Note struct {
	ID         int64     `json:"id" db:"id"`
	AuthorID   int64     `json:"-" db:"author_id"`
	AuthorName string    `json:"author_name" db:"-"`
	Title      string    `json:"title" db:"title"`
	Content    string    `json:"content" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
