package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/linguakurs/crm-api/internal/models"
)

// PaymentRepository manages the two append-only ledger payment tables.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func tableFor(kind models.PaymentKind) (string, error) {
	switch kind {
	case models.PaymentKindReferral:
		return "referral_payments", nil
	case models.PaymentKindBonus:
		return "bonus_payments", nil
	default:
		return "", fmt.Errorf("unknown payment kind %q", kind)
	}
}

// Create appends a payment of the given kind.
func (r *PaymentRepository) Create(ctx context.Context, kind models.PaymentKind, payment *models.Payment) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.PaidAt.IsZero() {
		payment.PaidAt = now
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, student_id, amount, paid_at, user_id, notes, created_at)
        VALUES (:id, :student_id, :amount, :paid_at, :user_id, :notes, :created_at)`, table)
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create %s payment: %w", kind, err)
	}
	return nil
}

// ListByStudent returns a student's payments of one kind, newest first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, kind models.PaymentKind, studentID string) ([]models.Payment, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, student_id, amount, paid_at, user_id, notes, created_at
        FROM %s WHERE student_id = $1 ORDER BY paid_at DESC`, table)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list %s payments: %w", kind, err)
	}
	return payments, nil
}

// SumByStudent totals a student's payments of one kind.
func (r *PaymentRepository) SumByStudent(ctx context.Context, kind models.PaymentKind, studentID string) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COALESCE(SUM(amount), 0) FROM %s WHERE student_id = $1", table)
	var total int64
	if err := r.db.GetContext(ctx, &total, query, studentID); err != nil {
		return 0, fmt.Errorf("sum %s payments: %w", kind, err)
	}
	return total, nil
}

// SumInRange totals payments of one kind paid inside the closed range.
func (r *PaymentRepository) SumInRange(ctx context.Context, kind models.PaymentKind, from, to time.Time) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COALESCE(SUM(amount), 0) FROM %s WHERE paid_at >= $1 AND paid_at <= $2", table)
	var total int64
	if err := r.db.GetContext(ctx, &total, query, from, to); err != nil {
		return 0, fmt.Errorf("sum %s payments in range: %w", kind, err)
	}
	return total, nil
}
