package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/linguakurs/crm-api/internal/models"
)

// QuoteRepository manages persistence for price quotes. Quotes are immutable
// once written.
type QuoteRepository struct {
	db *sqlx.DB
}

// NewQuoteRepository constructs a QuoteRepository.
func NewQuoteRepository(db *sqlx.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// Create inserts a new price quote.
func (r *QuoteRepository) Create(ctx context.Context, quote *models.PriceQuote) error {
	if quote.ID == "" {
		quote.ID = uuid.NewString()
	}
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO price_quotes (id, user_id, student_id, course_level, course_duration, total_price,
        cash_price, installment_price, payment_type, installment_count, installment_amount, discount,
        final_price, notes, is_accepted, created_at)
        VALUES (:id, :user_id, :student_id, :course_level, :course_duration, :total_price,
        :cash_price, :installment_price, :payment_type, :installment_count, :installment_amount, :discount,
        :final_price, :notes, :is_accepted, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, quote); err != nil {
		return fmt.Errorf("create price quote: %w", err)
	}
	return nil
}

// ListByStudent returns a student's quotes, newest first.
func (r *QuoteRepository) ListByStudent(ctx context.Context, studentID string) ([]models.PriceQuote, error) {
	const query = `SELECT id, user_id, student_id, course_level, course_duration, total_price, cash_price,
        installment_price, payment_type, installment_count, installment_amount, discount, final_price,
        notes, is_accepted, created_at
        FROM price_quotes WHERE student_id = $1 ORDER BY created_at DESC`
	var quotes []models.PriceQuote
	if err := r.db.SelectContext(ctx, &quotes, query, studentID); err != nil {
		return nil, fmt.Errorf("list price quotes: %w", err)
	}
	return quotes, nil
}
