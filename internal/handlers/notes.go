package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/esgportal/apiserver/internal/services"
)

type NoteHandler struct {
	notes *services.NoteService
}

func NewNoteHandler(notes *services.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

// NoteRouter registers the caller's note routes.
func NoteRouter(r chi.Router, notes *services.NoteService) {
	handler := NewNoteHandler(notes)

	r.Get("/", handler.ListNotes)
	r.Post("/", handler.CreateNote)
	r.Put("/{noteID}", handler.UpdateNote)
	r.Delete("/{noteID}/delete", handler.DeleteNote)
}

func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	session, _ := services.SessionFromContext(r.Context())
	notes, err := h.notes.List(r.Context(), session)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, _ := services.SessionFromContext(r.Context())
	note, err := h.notes.Create(r.Context(), session, req.Title, req.Content)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	noteID, err := parseIDParam(r, "noteID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req NoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, _ := services.SessionFromContext(r.Context())
	note, err := h.notes.Update(r.Context(), session, noteID, req.Title, req.Content)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	noteID, err := parseIDParam(r, "noteID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, _ := services.SessionFromContext(r.Context())
	if err := h.notes.Delete(r.Context(), session, noteID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type NoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
