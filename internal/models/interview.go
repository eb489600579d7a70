package models

import "time"

// Interview is a logged contact event owned by one student. Interviews are
// immutable once recorded: there is no update or delete path.
type Interview struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	Date         time.Time  `db:"date" json:"date"`
	Type         string     `db:"type" json:"type"`
	Notes        string     `db:"notes" json:"notes"`
	Outcome      string     `db:"outcome" json:"outcome"`
	FollowUpDate *time.Time `db:"follow_up_date" json:"follow_up_date,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
