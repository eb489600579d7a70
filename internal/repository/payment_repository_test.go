package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linguakurs/crm-api/internal/models"
)

func newPaymentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryCreateSelectsTable(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO referral_payments").
		WithArgs(sqlmock.AnyArg(), "s1", int64(400), sqlmock.AnyArg(), "user-1", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO bonus_payments").
		WithArgs(sqlmock.AnyArg(), "s1", int64(1000), sqlmock.AnyArg(), "user-1", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), models.PaymentKindReferral, &models.Payment{StudentID: "s1", Amount: 400, UserID: "user-1"}))
	require.NoError(t, repo.Create(context.Background(), models.PaymentKindBonus, &models.Payment{StudentID: "s1", Amount: 1000, UserID: "user-1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCreateUnknownKind(t *testing.T) {
	db, _, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	err := repo.Create(context.Background(), models.PaymentKind("tips"), &models.Payment{StudentID: "s1", Amount: 1})
	require.Error(t, err)
}

func TestPaymentRepositorySumByStudent(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM referral_payments WHERE student_id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(700))

	total, err := repo.SumByStudent(context.Background(), models.PaymentKindReferral, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(700), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySumInRange(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM bonus_payments WHERE paid_at >= $1 AND paid_at <= $2")).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2500))

	total, err := repo.SumInRange(context.Background(), models.PaymentKindBonus, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "amount", "paid_at", "user_id", "notes", "created_at"}).
		AddRow("p1", "s1", int64(400), time.Now(), "user-1", "", time.Now()).
		AddRow("p2", "s1", int64(300), time.Now(), "user-1", "kalan", time.Now())
	mock.ExpectQuery("SELECT (.+) FROM referral_payments WHERE student_id = \\$1 ORDER BY paid_at DESC").
		WithArgs("s1").
		WillReturnRows(rows)

	payments, err := repo.ListByStudent(context.Background(), models.PaymentKindReferral, "s1")
	require.NoError(t, err)
	assert.Len(t, payments, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
