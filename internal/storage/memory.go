package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shubham-manmohan/voicenote/internal/models"
)

// MemoryStorage keeps everything in maps behind one lock. It backs the
// use_in_memory config mode and the test suite.
type MemoryStorage struct {
	mu      sync.RWMutex
	users   map[int64]*models.User
	notes   map[int64]*models.Note
	bubbles map[int64]*models.NoteBubble

	nextUserID   int64
	nextNoteID   int64
	nextBubbleID int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:   make(map[int64]*models.User),
		notes:   make(map[int64]*models.Note),
		bubbles: make(map[int64]*models.NoteBubble),
	}
}

func (s *MemoryStorage) Close() error {
	return nil
}

// --- users ---

func (s *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return ErrEmailTaken
		}
	}

	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = time.Now().UTC()

	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *MemoryStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// --- notes ---

func (s *MemoryStorage) CreateNote(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextNoteID++
	note.ID = s.nextNoteID
	note.Timestamp = time.Now().UTC()
	if note.Actions == nil {
		note.Actions = []string{}
	}

	stored := *note
	stored.Bubbles = nil
	s.notes[note.ID] = &stored

	for _, bubble := range note.Bubbles {
		s.nextBubbleID++
		bubble.ID = s.nextBubbleID
		bubble.NoteID = note.ID
		bubble.Timestamp = time.Now().UTC()

		storedBubble := *bubble
		s.bubbles[bubble.ID] = &storedBubble
	}

	return nil
}

func (s *MemoryStorage) ListNotes(ctx context.Context, userID int64) ([]*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.notesForUser(userID), nil
}

func (s *MemoryStorage) ListNotesPage(ctx context.Context, userID int64, offset, limit int) (*NotesPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := s.notesForUser(userID)
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].Timestamp.Equal(notes[j].Timestamp) {
			return notes[i].ID > notes[j].ID
		}
		return notes[i].Timestamp.After(notes[j].Timestamp)
	})

	total := len(notes)
	if offset >= total {
		return &NotesPage{Notes: []*models.Note{}, Total: total}, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return &NotesPage{Notes: notes[offset:end], Total: total}, nil
}

func (s *MemoryStorage) GetNote(ctx context.Context, userID, noteID int64) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getOwnedNote(userID, noteID)
}

func (s *MemoryStorage) UpdateNote(ctx context.Context, userID, noteID int64, patch models.NotePatch) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, exists := s.notes[noteID]
	if !exists || note.UserID != userID {
		return nil, ErrNotFound
	}

	if patch.Title != nil {
		note.Title = *patch.Title
	}
	if patch.Preview != nil {
		note.Preview = *patch.Preview
	}
	if patch.Actions != nil {
		note.Actions = append([]string{}, (*patch.Actions)...)
	}

	return s.getOwnedNote(userID, noteID)
}

func (s *MemoryStorage) DeleteNote(ctx context.Context, userID, noteID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, exists := s.notes[noteID]
	if !exists || note.UserID != userID {
		return ErrNotFound
	}

	for id, bubble := range s.bubbles {
		if bubble.NoteID == noteID {
			delete(s.bubbles, id)
		}
	}
	delete(s.notes, noteID)
	return nil
}

// --- bubbles ---

func (s *MemoryStorage) AddBubble(ctx context.Context, userID, noteID int64, bubble *models.NoteBubble) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, exists := s.notes[noteID]
	if !exists || note.UserID != userID {
		return ErrNotFound
	}

	s.nextBubbleID++
	bubble.ID = s.nextBubbleID
	bubble.NoteID = noteID
	bubble.Timestamp = time.Now().UTC()

	stored := *bubble
	s.bubbles[bubble.ID] = &stored
	return nil
}

func (s *MemoryStorage) UpdateBubble(ctx context.Context, userID, bubbleID int64, patch models.BubblePatch) (*models.NoteBubble, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bubble, err := s.getOwnedBubble(userID, bubbleID)
	if err != nil {
		return nil, err
	}

	if patch.Content != nil {
		bubble.Content = *patch.Content
	}
	if patch.AudioPath != nil {
		bubble.AudioPath = *patch.AudioPath
	}
	bubble.IsEdited = true
	if patch.IsEdited != nil {
		bubble.IsEdited = *patch.IsEdited
	}

	copied := *bubble
	return &copied, nil
}

func (s *MemoryStorage) DeleteBubble(ctx context.Context, userID, bubbleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getOwnedBubble(userID, bubbleID); err != nil {
		return err
	}
	delete(s.bubbles, bubbleID)
	return nil
}

// --- helpers, caller must hold the lock ---

func (s *MemoryStorage) notesForUser(userID int64) []*models.Note {
	notes := []*models.Note{}
	for _, note := range s.notes {
		if note.UserID != userID {
			continue
		}
		copied := *note
		copied.Actions = append([]string{}, note.Actions...)
		copied.Bubbles = s.bubblesForNote(note.ID)
		notes = append(notes, &copied)
	}
	return notes
}

func (s *MemoryStorage) getOwnedNote(userID, noteID int64) (*models.Note, error) {
	note, exists := s.notes[noteID]
	if !exists || note.UserID != userID {
		return nil, ErrNotFound
	}

	copied := *note
	copied.Actions = append([]string{}, note.Actions...)
	copied.Bubbles = s.bubblesForNote(noteID)
	return &copied, nil
}

func (s *MemoryStorage) getOwnedBubble(userID, bubbleID int64) (*models.NoteBubble, error) {
	bubble, exists := s.bubbles[bubbleID]
	if !exists {
		return nil, ErrNotFound
	}
	note, exists := s.notes[bubble.NoteID]
	if !exists || note.UserID != userID {
		return nil, ErrNotFound
	}
	return bubble, nil
}

func (s *MemoryStorage) bubblesForNote(noteID int64) []*models.NoteBubble {
	bubbles := []*models.NoteBubble{}
	for _, bubble := range s.bubbles {
		if bubble.NoteID == noteID {
			copied := *bubble
			bubbles = append(bubbles, &copied)
		}
	}
	sort.Slice(bubbles, func(i, j int) bool {
		if bubbles[i].Timestamp.Equal(bubbles[j].Timestamp) {
			return bubbles[i].ID < bubbles[j].ID
		}
		return bubbles[i].Timestamp.Before(bubbles[j].Timestamp)
	})
	return bubbles
}
