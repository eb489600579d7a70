package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/linguakurs/crm-api/internal/models"
)

// BoardRepository manages the staff notice board collections: chat messages
// and sticky notes.
type BoardRepository struct {
	db *sqlx.DB
}

// NewBoardRepository constructs a BoardRepository.
func NewBoardRepository(db *sqlx.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

// ListMessages returns all board messages, oldest first.
func (r *BoardRepository) ListMessages(ctx context.Context) ([]models.Message, error) {
	const query = `SELECT m.id, m.user_id, COALESCE(u.email, '') AS user_email, m.content, m.created_at
        FROM messages m LEFT JOIN users u ON u.id = m.user_id
        ORDER BY m.created_at ASC`
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// CreateMessage appends a board message.
func (r *BoardRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO messages (id, user_id, content, created_at)
        VALUES (:id, :user_id, :content, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// ListNotes returns all sticky notes, newest first.
func (r *BoardRepository) ListNotes(ctx context.Context) ([]models.StickyNote, error) {
	const query = `SELECT n.id, n.user_id, COALESCE(u.email, '') AS user_email, n.content, n.created_at, n.updated_at
        FROM sticky_notes n LEFT JOIN users u ON u.id = n.user_id
        ORDER BY n.created_at DESC`
	var notes []models.StickyNote
	if err := r.db.SelectContext(ctx, &notes, query); err != nil {
		return nil, fmt.Errorf("list sticky notes: %w", err)
	}
	return notes, nil
}

// FindNoteByID fetches a single sticky note.
func (r *BoardRepository) FindNoteByID(ctx context.Context, id string) (*models.StickyNote, error) {
	const query = `SELECT n.id, n.user_id, COALESCE(u.email, '') AS user_email, n.content, n.created_at, n.updated_at
        FROM sticky_notes n LEFT JOIN users u ON u.id = n.user_id
        WHERE n.id = $1`
	var note models.StickyNote
	if err := r.db.GetContext(ctx, &note, query, id); err != nil {
		return nil, err
	}
	return &note, nil
}

// CreateNote inserts a sticky note.
func (r *BoardRepository) CreateNote(ctx context.Context, note *models.StickyNote) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now
	const query = `INSERT INTO sticky_notes (id, user_id, content, created_at, updated_at)
        VALUES (:id, :user_id, :content, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, note); err != nil {
		return fmt.Errorf("create sticky note: %w", err)
	}
	return nil
}

// UpdateNote rewrites a sticky note's content.
func (r *BoardRepository) UpdateNote(ctx context.Context, id, content string) error {
	const query = `UPDATE sticky_notes SET content = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, content, time.Now().UTC()); err != nil {
		return fmt.Errorf("update sticky note: %w", err)
	}
	return nil
}

// DeleteNote removes a sticky note.
func (r *BoardRepository) DeleteNote(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sticky_notes WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete sticky note: %w", err)
	}
	return nil
}
