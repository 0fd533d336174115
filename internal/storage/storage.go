package storage

import (
	"context"
	"errors"

	"github.com/shubham-manmohan/voicenote/internal/models"
)

var (
	// ErrNotFound covers both a genuinely absent record and one owned by a
	// different user; callers cannot tell the two apart.
	ErrNotFound = errors.New("record not found")

	// ErrEmailTaken is returned when registration hits the users.email
	// unique constraint.
	ErrEmailTaken = errors.New("email already registered")
)

type Storage interface {
	UserStorage
	NoteStorage
	Close() error
}

type UserStorage interface {
	// CreateUser persists a new account and fills in ID and CreatedAt.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// NotesPage is one page of a user's notes, newest first.
type NotesPage struct {
	Notes []*models.Note
	Total int
}

type NoteStorage interface {
	// CreateNote persists the note together with its initial bubbles in a
	// single transaction and fills in the generated ids and timestamps.
	CreateNote(ctx context.Context, note *models.Note) error
	ListNotes(ctx context.Context, userID int64) ([]*models.Note, error)
	ListNotesPage(ctx context.Context, userID int64, offset, limit int) (*NotesPage, error)
	GetNote(ctx context.Context, userID, noteID int64) (*models.Note, error)
	UpdateNote(ctx context.Context, userID, noteID int64, patch models.NotePatch) (*models.Note, error)
	DeleteNote(ctx context.Context, userID, noteID int64) error

	// AddBubble attaches a bubble to one of userID's notes. The bubble's
	// timestamp is set by the store, never taken from the caller.
	AddBubble(ctx context.Context, userID, noteID int64, bubble *models.NoteBubble) error
	UpdateBubble(ctx context.Context, userID, bubbleID int64, patch models.BubblePatch) (*models.NoteBubble, error)
	DeleteBubble(ctx context.Context, userID, bubbleID int64) error
}
