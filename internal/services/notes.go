package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/esgportal/apiserver/internal/store"
	"github.com/esgportal/apiserver/types"
)

const maxNoteTitleLength = 200

type NoteRepository interface {
	ListByAuthor(ctx context.Context, authorID int64) ([]types.Note, error)
	Create(ctx context.Context, note types.Note) (types.Note, error)
	Update(ctx context.Context, note types.Note) (types.Note, error)
	Delete(ctx context.Context, id, authorID int64) error
}

// NoteService manages a user's private notes. Notes of other users are
// reported as not found.
type NoteService struct {
	repo NoteRepository
}

func NewNoteService(repo NoteRepository) *NoteService {
	return &NoteService{repo: repo}
}

func (s *NoteService) List(ctx context.Context, session Session) ([]types.Note, error) {
	return s.repo.ListByAuthor(ctx, session.UserID)
}

func (s *NoteService) Create(ctx context.Context, session Session, title, content string) (types.Note, error) {
	note := types.Note{AuthorID: session.UserID, AuthorName: session.Username, Title: strings.TrimSpace(title), Content: content}
	if err := validateNote(note); err != nil {
		return types.Note{}, err
	}
	return s.repo.Create(ctx, note)
}

func (s *NoteService) Update(ctx context.Context, session Session, id int64, title, content string) (types.Note, error) {
	note := types.Note{ID: id, AuthorID: session.UserID, AuthorName: session.Username, Title: strings.TrimSpace(title), Content: content}
	if err := validateNote(note); err != nil {
		return types.Note{}, err
	}
	updated, err := s.repo.Update(ctx, note)
	if errors.Is(err, store.ErrNotFound) {
		return types.Note{}, notFound("note", id)
	}
	return updated, err
}

func (s *NoteService) Delete(ctx context.Context, session Session, id int64) error {
	err := s.repo.Delete(ctx, id, session.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("note", id)
	}
	return err
}

func validateNote(note types.Note) error {
	verr := &ValidationError{}
	switch {
	case note.Title == "":
		verr.Add("title", "required")
	case utf8.RuneCountInString(note.Title) > maxNoteTitleLength:
		verr.Add("title", "too long")
	}
	if strings.TrimSpace(note.Content) == "" {
		verr.Add("content", "required")
	}
	return verr.OrNil()
}
