package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/esgportal/apiserver/types"
)

// NoteRepository handles persistence for user notes. Every query is
// scoped to the author.
type NoteRepository struct {
	db *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) ListByAuthor(ctx context.Context, authorID int64) ([]types.Note, error) {
	const query = `
		SELECT n.id, n.author_id, u.username, n.title, n.content, n.created_at
		FROM notes n
		JOIN users u ON u.id = n.author_id
		WHERE n.author_id = $1
		ORDER BY n.created_at DESC, n.id DESC`
	rows, err := r.db.QueryContext(ctx, query, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]types.Note, 0)
	for rows.Next() {
		var note types.Note
		if err := rows.Scan(&note.ID, &note.AuthorID, &note.AuthorName, &note.Title, &note.Content, &note.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *NoteRepository) Create(ctx context.Context, note types.Note) (types.Note, error) {
	note.CreatedAt = time.Now()

	const query = `
		INSERT INTO notes (author_id, title, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, note.AuthorID, note.Title, note.Content, note.CreatedAt).Scan(&note.ID); err != nil {
		return types.Note{}, err
	}
	return note, nil
}

func (r *NoteRepository) Update(ctx context.Context, note types.Note) (types.Note, error) {
	const query = `
		UPDATE notes
		SET title = $1,
			content = $2
		WHERE id = $3 AND author_id = $4
		RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, note.Title, note.Content, note.ID, note.AuthorID).Scan(&note.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.Note{}, ErrNotFound
		}
		return types.Note{}, err
	}
	return note, nil
}

func (r *NoteRepository) Delete(ctx context.Context, id, authorID int64) error {
	const query = `DELETE FROM notes WHERE id = $1 AND author_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, authorID)
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
