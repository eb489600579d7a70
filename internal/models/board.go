package models

import "time"

// Message is a staff notice-board chat entry.
type Message struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	UserEmail string    `db:"user_email" json:"user_email,omitempty"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StickyNote is a shared note pinned on the staff board.
type StickyNote struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	UserEmail string    `db:"user_email" json:"user_email,omitempty"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Board feed event names. Each committed write is broadcast exactly once;
// payloads carry the record id so subscribers can drop duplicates of rows
// they already hold locally.
const (
	EventMessageCreated = "message.created"
	EventNoteCreated    = "note.created"
	EventNoteUpdated    = "note.updated"
	EventNoteDeleted    = "note.deleted"
)

// BoardEvent is the wire format of the realtime board feed.
type BoardEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}
