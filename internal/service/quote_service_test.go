package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/linguakurs/crm-api/internal/models"
	appErrors "github.com/linguakurs/crm-api/pkg/errors"
)

type mockQuoteRepo struct {
	created []models.PriceQuote
}

func (m *mockQuoteRepo) Create(ctx context.Context, quote *models.PriceQuote) error {
	quote.ID = "generated"
	m.created = append(m.created, *quote)
	return nil
}

func (m *mockQuoteRepo) ListByStudent(ctx context.Context, studentID string) ([]models.PriceQuote, error) {
	return m.created, nil
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func newTestQuoteService(repo *mockQuoteRepo, students *mockLedgerStudentRepo) *QuoteService {
	return NewQuoteService(repo, students, validator.New(), zap.NewNop())
}

func TestQuoteCreateCashPricing(t *testing.T) {
	students := newMockLedgerStudentRepo(&models.Student{ID: "s1"})
	repo := &mockQuoteRepo{}
	svc := newTestQuoteService(repo, students)

	quote, err := svc.Create(context.Background(), "s1", "user-1", CreateQuoteRequest{
		CourseLevel:    "A1.1",
		CourseDuration: "3 ay",
		TotalPrice:     1500,
		CashPrice:      floatPtr(1200),
		PaymentType:    models.PaymentCash,
		Discount:       200,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(1000), quote.FinalPrice)
	assert.Nil(t, quote.InstallmentAmount)
	assert.Equal(t, "user-1", quote.UserID)
}

func TestQuoteDiscountAboveBaseGoesNegative(t *testing.T) {
	students := newMockLedgerStudentRepo(&models.Student{ID: "s1"})
	svc := newTestQuoteService(&mockQuoteRepo{}, students)

	quote, err := svc.Create(context.Background(), "s1", "user-1", CreateQuoteRequest{
		CourseLevel:    "A1.1",
		CourseDuration: "3 ay",
		TotalPrice:     500,
		PaymentType:    models.PaymentCash,
		Discount:       800,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(-300), quote.FinalPrice)
}

func TestQuoteCreateInstallmentPricing(t *testing.T) {
	students := newMockLedgerStudentRepo(&models.Student{ID: "s1"})
	repo := &mockQuoteRepo{}
	svc := newTestQuoteService(repo, students)

	quote, err := svc.Create(context.Background(), "s1", "user-1", CreateQuoteRequest{
		CourseLevel:      "B1.2",
		CourseDuration:   "6 ay",
		TotalPrice:       1500,
		InstallmentPrice: floatPtr(1200),
		PaymentType:      models.PaymentInstallment,
		InstallmentCount: intPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, float64(1200), quote.FinalPrice)
	require.NotNil(t, quote.InstallmentAmount)
	assert.Equal(t, float64(400), *quote.InstallmentAmount)
}

func TestQuoteInstallmentAmountRoundsToTwoDecimals(t *testing.T) {
	students := newMockLedgerStudentRepo(&models.Student{ID: "s1"})
	svc := newTestQuoteService(&mockQuoteRepo{}, students)

	quote, err := svc.Create(context.Background(), "s1", "user-1", CreateQuoteRequest{
		CourseLevel:      "A2.1",
		CourseDuration:   "3 ay",
		InstallmentPrice: floatPtr(1000),
		PaymentType:      models.PaymentInstallment,
		InstallmentCount: intPtr(3),
	})
	require.NoError(t, err)
	require.NotNil(t, quote.InstallmentAmount)
	assert.Equal(t, 333.33, *quote.InstallmentAmount)
}

func TestQuoteFallsBackToTotalPrice(t *testing.T) {
	students := newMockLedgerStudentRepo(&models.Student{ID: "s1"})
	svc := newTestQuoteService(&mockQuoteRepo{}, students)

	quote, err := svc.Create(context.Background(), "s1", "user-1", CreateQuoteRequest{
		CourseLevel:    "starter2",
		CourseDuration: "3 ay",
		TotalPrice:     900,
		PaymentType:    models.PaymentCash,
		Discount:       100,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(800), quote.FinalPrice)
}

func TestQuoteInstallmentRequiresCount(t *testing.T) {
	students := newMockLedgerStudentRepo(&models.Student{ID: "s1"})
	svc := newTestQuoteService(&mockQuoteRepo{}, students)

	_, err := svc.Create(context.Background(), "s1", "user-1", CreateQuoteRequest{
		CourseLevel:      "A1.1",
		CourseDuration:   "3 ay",
		InstallmentPrice: floatPtr(1200),
		PaymentType:      models.PaymentInstallment,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestQuoteCreateUnknownStudent(t *testing.T) {
	svc := newTestQuoteService(&mockQuoteRepo{}, newMockLedgerStudentRepo())

	_, err := svc.Create(context.Background(), "ghost", "user-1", CreateQuoteRequest{
		CourseLevel:    "A1.1",
		CourseDuration: "3 ay",
		TotalPrice:     900,
		PaymentType:    models.PaymentCash,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
