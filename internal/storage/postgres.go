package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/shubham-manmohan/voicenote/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	s.logger.Info("database schema initialized")
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// --- users ---

func (s *PostgresStorage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, mobile, hashed_password)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		user.Username,
		user.Email,
		user.Mobile,
		user.HashedPassword,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		// The unique constraint is the real guarantor against duplicate
		// registration; the handler's existence pre-check is only a
		// friendlier fast path.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrEmailTaken
		}
		return fmt.Errorf("error creating user: %w", err)
	}

	return nil
}

func (s *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `WHERE email = $1`, email)
}

func (s *PostgresStorage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStorage) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `
		SELECT id, username, email, mobile, hashed_password, created_at
		FROM users ` + where

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Mobile,
		&user.HashedPassword,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user: %w", err)
	}

	return user, nil
}

// --- notes ---

func (s *PostgresStorage) CreateNote(ctx context.Context, note *models.Note) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO note (title, note_type, preview, actions, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, timestamp`

	err = tx.QueryRowContext(ctx, query,
		note.Title,
		note.NoteType,
		nullString(note.Preview),
		pq.Array(note.Actions),
		note.UserID,
	).Scan(&note.ID, &note.Timestamp)
	if err != nil {
		return fmt.Errorf("error creating note: %w", err)
	}

	bubbleQuery := `
		INSERT INTO note_bubble (note_bubble_type, content, audio_path, owner, is_edited, note_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, timestamp`

	for _, bubble := range note.Bubbles {
		bubble.NoteID = note.ID
		err = tx.QueryRowContext(ctx, bubbleQuery,
			bubble.Type,
			nullString(bubble.Content),
			nullString(bubble.AudioPath),
			bubble.Owner,
			bubble.IsEdited,
			note.ID,
		).Scan(&bubble.ID, &bubble.Timestamp)
		if err != nil {
			return fmt.Errorf("error creating note bubble: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing note: %w", err)
	}

	return nil
}

func (s *PostgresStorage) ListNotes(ctx context.Context, userID int64) ([]*models.Note, error) {
	query := `
		SELECT id, title, note_type, timestamp, preview, actions, user_id
		FROM note
		WHERE user_id = $1`

	notes, err := s.queryNotes(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	if err := s.attachBubbles(ctx, notes); err != nil {
		return nil, err
	}

	return notes, nil
}

func (s *PostgresStorage) ListNotesPage(ctx context.Context, userID int64, offset, limit int) (*NotesPage, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM note WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("error counting notes: %w", err)
	}

	query := `
		SELECT id, title, note_type, timestamp, preview, actions, user_id
		FROM note
		WHERE user_id = $1
		ORDER BY timestamp DESC
		OFFSET $2 LIMIT $3`

	notes, err := s.queryNotes(ctx, query, userID, offset, limit)
	if err != nil {
		return nil, err
	}

	if err := s.attachBubbles(ctx, notes); err != nil {
		return nil, err
	}

	return &NotesPage{Notes: notes, Total: total}, nil
}

func (s *PostgresStorage) GetNote(ctx context.Context, userID, noteID int64) (*models.Note, error) {
	query := `
		SELECT id, title, note_type, timestamp, preview, actions, user_id
		FROM note
		WHERE id = $1 AND user_id = $2`

	notes, err := s.queryNotes(ctx, query, noteID, userID)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, ErrNotFound
	}

	if err := s.attachBubbles(ctx, notes); err != nil {
		return nil, err
	}

	return notes[0], nil
}

func (s *PostgresStorage) UpdateNote(ctx context.Context, userID, noteID int64, patch models.NotePatch) (*models.Note, error) {
	var (
		sets []string
		args []any
	)
	if patch.Title != nil {
		args = append(args, *patch.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if patch.Preview != nil {
		args = append(args, nullString(*patch.Preview))
		sets = append(sets, fmt.Sprintf("preview = $%d", len(args)))
	}
	if patch.Actions != nil {
		args = append(args, pq.Array(*patch.Actions))
		sets = append(sets, fmt.Sprintf("actions = $%d", len(args)))
	}

	if len(sets) == 0 {
		return s.GetNote(ctx, userID, noteID)
	}

	args = append(args, noteID, userID)
	query := fmt.Sprintf(`
		UPDATE note SET %s
		WHERE id = $%d AND user_id = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error updating note: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}

	return s.GetNote(ctx, userID, noteID)
}

func (s *PostgresStorage) DeleteNote(ctx context.Context, userID, noteID int64) error {
	// Bubbles go with the note through the ON DELETE CASCADE foreign key.
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM note WHERE id = $1 AND user_id = $2`, noteID, userID)
	if err != nil {
		return fmt.Errorf("error deleting note: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}

	return nil
}

// --- bubbles ---

func (s *PostgresStorage) AddBubble(ctx context.Context, userID, noteID int64, bubble *models.NoteBubble) error {
	// INSERT..SELECT keeps the ownership check and the insert in one
	// statement; no row means the note is absent or not the caller's.
	query := `
		INSERT INTO note_bubble (note_bubble_type, content, audio_path, owner, is_edited, note_id)
		SELECT $1, $2, $3, $4, $5, note.id
		FROM note
		WHERE note.id = $6 AND note.user_id = $7
		RETURNING id, timestamp`

	err := s.db.QueryRowContext(ctx, query,
		bubble.Type,
		nullString(bubble.Content),
		nullString(bubble.AudioPath),
		bubble.Owner,
		bubble.IsEdited,
		noteID,
		userID,
	).Scan(&bubble.ID, &bubble.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("error adding bubble: %w", err)
	}

	bubble.NoteID = noteID
	return nil
}

func (s *PostgresStorage) UpdateBubble(ctx context.Context, userID, bubbleID int64, patch models.BubblePatch) (*models.NoteBubble, error) {
	var (
		sets []string
		args []any
	)
	if patch.Content != nil {
		args = append(args, nullString(*patch.Content))
		sets = append(sets, fmt.Sprintf("content = $%d", len(args)))
	}
	if patch.AudioPath != nil {
		args = append(args, nullString(*patch.AudioPath))
		sets = append(sets, fmt.Sprintf("audio_path = $%d", len(args)))
	}

	// Touching a bubble marks it edited unless the caller says otherwise.
	isEdited := true
	if patch.IsEdited != nil {
		isEdited = *patch.IsEdited
	}
	args = append(args, isEdited)
	sets = append(sets, fmt.Sprintf("is_edited = $%d", len(args)))

	args = append(args, bubbleID, userID)
	query := fmt.Sprintf(`
		UPDATE note_bubble SET %s
		FROM note
		WHERE note_bubble.id = $%d AND note_bubble.note_id = note.id AND note.user_id = $%d
		RETURNING note_bubble.id, note_bubble.note_bubble_type, note_bubble.content,
			note_bubble.audio_path, note_bubble.timestamp, note_bubble.owner,
			note_bubble.is_edited, note_bubble.note_id`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	bubble, err := scanBubble(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error updating bubble: %w", err)
	}

	return bubble, nil
}

func (s *PostgresStorage) DeleteBubble(ctx context.Context, userID, bubbleID int64) error {
	query := `
		DELETE FROM note_bubble
		USING note
		WHERE note_bubble.id = $1 AND note_bubble.note_id = note.id AND note.user_id = $2`

	result, err := s.db.ExecContext(ctx, query, bubbleID, userID)
	if err != nil {
		return fmt.Errorf("error deleting bubble: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}

	return nil
}

// --- scan helpers ---

func (s *PostgresStorage) queryNotes(ctx context.Context, query string, args ...any) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying notes: %w", err)
	}
	defer rows.Close()

	notes := []*models.Note{}
	for rows.Next() {
		note := &models.Note{Bubbles: []*models.NoteBubble{}}
		var preview sql.NullString
		err := rows.Scan(
			&note.ID,
			&note.Title,
			&note.NoteType,
			&note.Timestamp,
			&preview,
			pq.Array(&note.Actions),
			&note.UserID,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning note: %w", err)
		}
		note.Preview = preview.String
		if note.Actions == nil {
			note.Actions = []string{}
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}

	return notes, nil
}

func (s *PostgresStorage) attachBubbles(ctx context.Context, notes []*models.Note) error {
	if len(notes) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Note, len(notes))
	ids := make([]int64, 0, len(notes))
	for _, note := range notes {
		byID[note.ID] = note
		ids = append(ids, note.ID)
	}

	query := `
		SELECT id, note_bubble_type, content, audio_path, timestamp, owner, is_edited, note_id
		FROM note_bubble
		WHERE note_id = ANY($1)
		ORDER BY timestamp, id`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error querying bubbles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		bubble, err := scanBubble(rows)
		if err != nil {
			return fmt.Errorf("error scanning bubble: %w", err)
		}
		note := byID[bubble.NoteID]
		note.Bubbles = append(note.Bubbles, bubble)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating bubbles: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBubble(row rowScanner) (*models.NoteBubble, error) {
	bubble := &models.NoteBubble{}
	var content, audioPath sql.NullString
	err := row.Scan(
		&bubble.ID,
		&bubble.Type,
		&content,
		&audioPath,
		&bubble.Timestamp,
		&bubble.Owner,
		&bubble.IsEdited,
		&bubble.NoteID,
	)
	if err != nil {
		return nil, err
	}
	bubble.Content = content.String
	bubble.AudioPath = audioPath.String
	return bubble, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
