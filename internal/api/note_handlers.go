package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shubham-manmohan/voicenote/internal/models"
	"github.com/shubham-manmohan/voicenote/internal/storage"
	"go.uber.org/zap"
)

type createBubbleRequest struct {
	Type      models.BubbleType  `json:"note_bubble_type"`
	Content   string             `json:"content"`
	AudioPath string             `json:"audio_path"`
	Owner     models.BubbleOwner `json:"owner"`
	IsEdited  bool               `json:"is_edited"`
	// A client-supplied timestamp is deliberately not decoded: creation
	// timestamps are always set server-side.
}

func (b createBubbleRequest) toModel() *models.NoteBubble {
	owner := b.Owner
	if owner == "" {
		owner = models.UserOwner
	}
	return &models.NoteBubble{
		Type:      b.Type,
		Content:   b.Content,
		AudioPath: b.AudioPath,
		Owner:     owner,
		IsEdited:  b.IsEdited,
	}
}

type createNoteRequest struct {
	Title    string                `json:"title"`
	NoteType string                `json:"note_type"`
	Preview  string                `json:"preview"`
	Actions  []string              `json:"actions"`
	Bubbles  []createBubbleRequest `json:"bubbles"`
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if strings.TrimSpace(req.NoteType) == "" {
		s.writeError(w, http.StatusBadRequest, "note_type is required")
		return
	}
	for _, bubble := range req.Bubbles {
		if bubble.Type == "" {
			s.writeError(w, http.StatusBadRequest, "note_bubble_type is required")
			return
		}
	}

	actions := req.Actions
	if actions == nil {
		actions = []string{}
	}
	note := &models.Note{
		Title:    req.Title,
		NoteType: req.NoteType,
		Preview:  req.Preview,
		Actions:  actions,
		UserID:   userIDFrom(r.Context()),
		Bubbles:  make([]*models.NoteBubble, 0, len(req.Bubbles)),
	}
	for _, bubble := range req.Bubbles {
		note.Bubbles = append(note.Bubbles, bubble.toModel())
	}

	if err := s.storage.CreateNote(r.Context(), note); err != nil {
		s.logger.Error("failed to create note", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.storage.ListNotes(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.logger.Error("failed to list notes", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, notes)
}

type paginatedNotesResponse struct {
	Notes   []*models.Note `json:"notes"`
	Page    int            `json:"page"`
	HasMore bool           `json:"hasMore"`
	Total   int            `json:"total"`
}

func (s *Server) handleListNotesPaginated(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(r, "page", 1)
	if !ok || page < 1 {
		s.writeError(w, http.StatusBadRequest, "page must be an integer >= 1")
		return
	}
	limit, ok := queryInt(r, "limit", 10)
	if !ok || limit < 1 || limit > 100 {
		s.writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 100")
		return
	}

	offset := (page - 1) * limit
	result, err := s.storage.ListNotesPage(r.Context(), userIDFrom(r.Context()), offset, limit)
	if err != nil {
		s.logger.Error("failed to list notes page", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, paginatedNotesResponse{
		Notes:   result.Notes,
		Page:    page,
		HasMore: page*limit < result.Total,
		Total:   result.Total,
	})
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	note, err := s.storage.GetNote(r.Context(), userIDFrom(r.Context()), noteID)
	if err != nil {
		s.noteError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	var patch models.NotePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	note, err := s.storage.UpdateNote(r.Context(), userIDFrom(r.Context()), noteID, patch)
	if err != nil {
		s.noteError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	if err := s.storage.DeleteNote(r.Context(), userIDFrom(r.Context()), noteID); err != nil {
		s.noteError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Note deleted"})
}

func (s *Server) handleAddBubble(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	var req createBubbleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		s.writeError(w, http.StatusBadRequest, "note_bubble_type is required")
		return
	}

	bubble := req.toModel()
	if err := s.storage.AddBubble(r.Context(), userIDFrom(r.Context()), noteID, bubble); err != nil {
		s.noteError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, bubble)
}

func (s *Server) handleUpdateBubble(w http.ResponseWriter, r *http.Request) {
	bubbleID, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid bubble id")
		return
	}

	var patch models.BubblePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bubble, err := s.storage.UpdateBubble(r.Context(), userIDFrom(r.Context()), bubbleID, patch)
	if err != nil {
		s.bubbleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, bubble)
}

func (s *Server) handleDeleteBubble(w http.ResponseWriter, r *http.Request) {
	bubbleID, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid bubble id")
		return
	}

	if err := s.storage.DeleteBubble(r.Context(), userIDFrom(r.Context()), bubbleID); err != nil {
		s.bubbleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "NoteBubble deleted"})
}

func (s *Server) noteError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Note not found")
		return
	}
	s.logger.Error("note operation failed", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (s *Server) bubbleError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "NoteBubble not found")
		return
	}
	s.logger.Error("bubble operation failed", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal server error")
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	return value, err == nil
}
