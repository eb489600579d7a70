package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/linguakurs/crm-api/internal/models"
)

// InterviewRepository manages persistence for interview records. Interviews
// are append-only: there is no update or delete statement here.
type InterviewRepository struct {
	db *sqlx.DB
}

// NewInterviewRepository constructs an InterviewRepository.
func NewInterviewRepository(db *sqlx.DB) *InterviewRepository {
	return &InterviewRepository{db: db}
}

// Create inserts a new interview record.
func (r *InterviewRepository) Create(ctx context.Context, interview *models.Interview) error {
	if interview.ID == "" {
		interview.ID = uuid.NewString()
	}
	if interview.CreatedAt.IsZero() {
		interview.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO interviews (id, user_id, student_id, date, type, notes, outcome, follow_up_date, created_at)
        VALUES (:id, :user_id, :student_id, :date, :type, :notes, :outcome, :follow_up_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, interview); err != nil {
		return fmt.Errorf("create interview: %w", err)
	}
	return nil
}

// ListByStudent returns a student's interviews, newest first.
func (r *InterviewRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Interview, error) {
	const query = `SELECT id, user_id, student_id, date, type, notes, outcome, follow_up_date, created_at
        FROM interviews WHERE student_id = $1 ORDER BY date DESC`
	var interviews []models.Interview
	if err := r.db.SelectContext(ctx, &interviews, query, studentID); err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	return interviews, nil
}

// ListByDateRange returns interviews held inside the closed range.
func (r *InterviewRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Interview, error) {
	const query = `SELECT id, user_id, student_id, date, type, notes, outcome, follow_up_date, created_at
        FROM interviews WHERE date >= $1 AND date <= $2 ORDER BY date DESC`
	var interviews []models.Interview
	if err := r.db.SelectContext(ctx, &interviews, query, from, to); err != nil {
		return nil, fmt.Errorf("list interviews by range: %w", err)
	}
	return interviews, nil
}
