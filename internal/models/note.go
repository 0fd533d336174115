package models

import "time"

type BubbleType string

const (
	TranscriptBubble BubbleType = "transcript"
	AudioBubble      BubbleType = "audio"
	TextBubble       BubbleType = "text"
)

type BubbleOwner string

const (
	SystemOwner BubbleOwner = "SYSTEM"
	UserOwner   BubbleOwner = "USER"
)

// Note is an ordered collection of bubbles owned by one user.
// Timestamp is set server-side at creation and never changes.
type Note struct {
	ID        int64         `json:"id"`
	Title     string        `json:"title"`
	NoteType  string        `json:"note_type"`
	Timestamp time.Time     `json:"timestamp"`
	Preview   string        `json:"preview,omitempty"`
	Actions   []string      `json:"actions"`
	UserID    int64         `json:"-"`
	Bubbles   []*NoteBubble `json:"bubbles"`
}

// NoteBubble is one fragment of a note's timeline: a text entry, an audio
// recording, or a transcript of one.
type NoteBubble struct {
	ID        int64       `json:"id"`
	Type      BubbleType  `json:"note_bubble_type"`
	Content   string      `json:"content,omitempty"`
	AudioPath string      `json:"audio_path,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Owner     BubbleOwner `json:"owner"`
	IsEdited  bool        `json:"is_edited"`
	NoteID    int64       `json:"-"`
}

// NotePatch carries a partial note update: nil fields are left untouched.
type NotePatch struct {
	Title   *string   `json:"title"`
	Preview *string   `json:"preview"`
	Actions *[]string `json:"actions"`
}

// BubblePatch carries a partial bubble update. When IsEdited is absent the
// store records the bubble as edited anyway: touching a bubble marks it.
type BubblePatch struct {
	Content   *string `json:"content"`
	AudioPath *string `json:"audio_path"`
	IsEdited  *bool   `json:"is_edited"`
}
