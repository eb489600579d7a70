package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/linguakurs/crm-api/internal/models"
	appErrors "github.com/linguakurs/crm-api/pkg/errors"
)

type mockLedgerStudentRepo struct {
	students map[string]*models.Student
	codes    map[string]string
	credits  int
}

func newMockLedgerStudentRepo(students ...*models.Student) *mockLedgerStudentRepo {
	repo := &mockLedgerStudentRepo{
		students: make(map[string]*models.Student),
		codes:    make(map[string]string),
	}
	for _, s := range students {
		repo.students[s.ID] = s
		if s.ReferralCode != nil {
			repo.codes[*s.ReferralCode] = s.ID
		}
	}
	return repo
}

func (m *mockLedgerStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLedgerStudentRepo) FindByReferralCode(ctx context.Context, code string) (*models.Student, error) {
	if id, ok := m.codes[code]; ok {
		cp := *m.students[id]
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLedgerStudentRepo) ExistsByReferralCode(ctx context.Context, code string) (bool, error) {
	_, ok := m.codes[code]
	return ok, nil
}

func (m *mockLedgerStudentRepo) SetReferralCode(ctx context.Context, id, code string) error {
	if s, ok := m.students[id]; ok && s.ReferralCode == nil {
		s.ReferralCode = &code
		m.codes[code] = id
	}
	return nil
}

func (m *mockLedgerStudentRepo) CreditReferral(ctx context.Context, referrerID, referredID string, amount int64) (bool, error) {
	referred, ok := m.students[referredID]
	if !ok {
		return false, sql.ErrNoRows
	}
	if referred.ReferralCreditedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	referred.ReferralCreditedAt = &now
	referred.ReferredStudentBonus = amount
	if referrer, ok := m.students[referrerID]; ok {
		referrer.ReferralEarnings += amount
	}
	m.credits++
	return true, nil
}

func (m *mockLedgerStudentRepo) ListReferredBy(ctx context.Context, referrerID string) ([]models.Student, error) {
	var out []models.Student
	for _, s := range m.students {
		if s.ReferredByStudentID != nil && *s.ReferredByStudentID == referrerID {
			out = append(out, *s)
		}
	}
	return out, nil
}

type mockPaymentRepo struct {
	payments map[models.PaymentKind][]models.Payment
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[models.PaymentKind][]models.Payment)}
}

func (m *mockPaymentRepo) Create(ctx context.Context, kind models.PaymentKind, payment *models.Payment) error {
	payment.ID = "generated"
	payment.PaidAt = time.Now().UTC()
	m.payments[kind] = append(m.payments[kind], *payment)
	return nil
}

func (m *mockPaymentRepo) ListByStudent(ctx context.Context, kind models.PaymentKind, studentID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range m.payments[kind] {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) SumByStudent(ctx context.Context, kind models.PaymentKind, studentID string) (int64, error) {
	var total int64
	for _, p := range m.payments[kind] {
		if p.StudentID == studentID {
			total += p.Amount
		}
	}
	return total, nil
}

func newTestReferralService(students *mockLedgerStudentRepo, payments *mockPaymentRepo) *ReferralService {
	return NewReferralService(students, payments, validator.New(), zap.NewNop(), 1000)
}

func strPtr(s string) *string { return &s }

func TestEnsureCodeDerivation(t *testing.T) {
	student := &models.Student{
		ID:      "5f2d7a9c-1111-2222-3333-444455556666",
		Name:    "ayse",
		Surname: "yilmaz",
		Status:  models.StatusEnrolled,
	}
	repo := newMockLedgerStudentRepo(student)
	svc := newTestReferralService(repo, newMockPaymentRepo())

	code, err := svc.EnsureCode(context.Background(), student)
	require.NoError(t, err)
	assert.Equal(t, "AY5F2D7A", code)
	require.NotNil(t, student.ReferralCode)
	assert.Equal(t, code, *student.ReferralCode)
}

func TestEnsureCodeIdempotent(t *testing.T) {
	existing := "AY5F2D7A"
	student := &models.Student{
		ID:           "5f2d7a9c-1111-2222-3333-444455556666",
		Name:         "ayse",
		Surname:      "yilmaz",
		ReferralCode: &existing,
	}
	repo := newMockLedgerStudentRepo(student)
	svc := newTestReferralService(repo, newMockPaymentRepo())

	code, err := svc.EnsureCode(context.Background(), student)
	require.NoError(t, err)
	assert.Equal(t, existing, code)
}

func TestEnsureCodeCollisionSlidesWindow(t *testing.T) {
	taken := "AY5F2D7A"
	other := &models.Student{ID: "other", ReferralCode: &taken}
	student := &models.Student{
		ID:      "5f2d7a9c-1111-2222-3333-444455556666",
		Name:    "ayse",
		Surname: "yilmaz",
	}
	repo := newMockLedgerStudentRepo(other, student)
	svc := newTestReferralService(repo, newMockPaymentRepo())

	code, err := svc.EnsureCode(context.Background(), student)
	require.NoError(t, err)
	assert.Equal(t, "AYF2D7A9", code)
}

func TestResolveCodeSoftMiss(t *testing.T) {
	repo := newMockLedgerStudentRepo()
	svc := newTestReferralService(repo, newMockPaymentRepo())

	student, err := svc.ResolveCode(context.Background(), "NOPE1234")
	require.NoError(t, err)
	assert.Nil(t, student)
}

func TestResolveCodeNormalises(t *testing.T) {
	code := "AY5F2D7A"
	referrer := &models.Student{ID: "ref-1", ReferralCode: &code}
	repo := newMockLedgerStudentRepo(referrer)
	svc := newTestReferralService(repo, newMockPaymentRepo())

	found, err := svc.ResolveCode(context.Background(), "  ay5f2d7a ")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "ref-1", found.ID)
}

func TestCreditEnrollmentAppliesPairOnce(t *testing.T) {
	referrer := &models.Student{ID: "ref-1", Status: models.StatusEnrolled}
	referred := &models.Student{
		ID:                  "new-1",
		Status:              models.StatusEnrolled,
		ReferredByStudentID: strPtr("ref-1"),
	}
	repo := newMockLedgerStudentRepo(referrer, referred)
	svc := newTestReferralService(repo, newMockPaymentRepo())

	require.NoError(t, svc.CreditEnrollment(context.Background(), referred, models.StatusInterested))
	assert.Equal(t, int64(1000), repo.students["ref-1"].ReferralEarnings)
	assert.Equal(t, int64(1000), repo.students["new-1"].ReferredStudentBonus)
	assert.Equal(t, int64(1000), referred.ReferredStudentBonus)
	assert.Equal(t, 1, repo.credits)

	// Cancel and re-enroll: the transition fires again but the pair must not.
	require.NoError(t, svc.CreditEnrollment(context.Background(), referred, models.StatusCancelled))
	assert.Equal(t, int64(1000), repo.students["ref-1"].ReferralEarnings)
	assert.Equal(t, 1, repo.credits)
}

func TestCreditEnrollmentSkipsNonTransitions(t *testing.T) {
	referrer := &models.Student{ID: "ref-1"}
	referred := &models.Student{
		ID:                  "new-1",
		Status:              models.StatusEnrolled,
		ReferredByStudentID: strPtr("ref-1"),
	}
	repo := newMockLedgerStudentRepo(referrer, referred)
	svc := newTestReferralService(repo, newMockPaymentRepo())

	// Already enrolled before the edit.
	require.NoError(t, svc.CreditEnrollment(context.Background(), referred, models.StatusEnrolled))
	assert.Zero(t, repo.credits)

	// Not enrolled now.
	notEnrolled := &models.Student{ID: "new-2", Status: models.StatusInterested, ReferredByStudentID: strPtr("ref-1")}
	require.NoError(t, svc.CreditEnrollment(context.Background(), notEnrolled, models.StatusNew))
	assert.Zero(t, repo.credits)

	// No referrer.
	organic := &models.Student{ID: "new-3", Status: models.StatusEnrolled}
	require.NoError(t, svc.CreditEnrollment(context.Background(), organic, models.StatusNew))
	assert.Zero(t, repo.credits)
}

func TestBalanceOutstandingClampedAtZero(t *testing.T) {
	student := &models.Student{ID: "s1", ReferralEarnings: 1000}
	repo := newMockLedgerStudentRepo(student)
	payments := newMockPaymentRepo()
	payments.payments[models.PaymentKindReferral] = []models.Payment{
		{StudentID: "s1", Amount: 800},
		{StudentID: "s1", Amount: 400},
	}
	svc := newTestReferralService(repo, payments)

	balance, err := svc.Balance(context.Background(), models.PaymentKindReferral, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance.Earned)
	assert.Equal(t, int64(1200), balance.Paid)
	assert.Equal(t, int64(0), balance.Outstanding)
}

func TestAddPaymentReducesOutstanding(t *testing.T) {
	student := &models.Student{ID: "s1", ReferralEarnings: 1000}
	repo := newMockLedgerStudentRepo(student)
	payments := newMockPaymentRepo()
	svc := newTestReferralService(repo, payments)

	payment, err := svc.AddPayment(context.Background(), models.PaymentKindReferral, "s1", "user-1", AddPaymentRequest{Amount: 400})
	require.NoError(t, err)
	assert.Equal(t, int64(400), payment.Amount)
	assert.Equal(t, "user-1", payment.UserID)

	balance, err := svc.Balance(context.Background(), models.PaymentKindReferral, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance.Outstanding)
}

func TestLedgerWritesEvictReportCache(t *testing.T) {
	referrer := &models.Student{ID: "ref-1", Status: models.StatusEnrolled}
	referred := &models.Student{
		ID:                  "new-1",
		Status:              models.StatusEnrolled,
		ReferredByStudentID: strPtr("ref-1"),
	}
	repo := newMockLedgerStudentRepo(referrer, referred)
	cache := &recordingInvalidator{}
	svc := newTestReferralService(repo, newMockPaymentRepo()).WithReportCache(cache)

	require.NoError(t, svc.CreditEnrollment(context.Background(), referred, models.StatusInterested))
	assert.Equal(t, []string{"reports:*"}, cache.patterns)

	// Skipped re-credit must not evict again.
	require.NoError(t, svc.CreditEnrollment(context.Background(), referred, models.StatusCancelled))
	assert.Len(t, cache.patterns, 1)

	_, err := svc.AddPayment(context.Background(), models.PaymentKindReferral, "ref-1", "user-1", AddPaymentRequest{Amount: 400})
	require.NoError(t, err)
	assert.Len(t, cache.patterns, 2)

	// Rejected overpayment must not evict.
	_, err = svc.AddPayment(context.Background(), models.PaymentKindReferral, "ref-1", "user-1", AddPaymentRequest{Amount: 5000})
	require.Error(t, err)
	assert.Len(t, cache.patterns, 2)
}

func TestAddPaymentRejectsOverpayment(t *testing.T) {
	student := &models.Student{ID: "s1", ReferralEarnings: 1000}
	repo := newMockLedgerStudentRepo(student)
	payments := newMockPaymentRepo()
	payments.payments[models.PaymentKindReferral] = []models.Payment{{StudentID: "s1", Amount: 700}}
	svc := newTestReferralService(repo, payments)

	_, err := svc.AddPayment(context.Background(), models.PaymentKindReferral, "s1", "user-1", AddPaymentRequest{Amount: 400})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrOverpayment.Code, appErr.Code)
	assert.Empty(t, payments.payments[models.PaymentKindReferral][1:])
}

func TestAddPaymentRejectsNonPositiveAmount(t *testing.T) {
	student := &models.Student{ID: "s1", ReferralEarnings: 1000}
	svc := newTestReferralService(newMockLedgerStudentRepo(student), newMockPaymentRepo())

	for _, amount := range []int64{0, -100} {
		_, err := svc.AddPayment(context.Background(), models.PaymentKindReferral, "s1", "user-1", AddPaymentRequest{Amount: amount})
		require.Error(t, err)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
}

func TestAddPaymentBonusSideUsesBonusEarnings(t *testing.T) {
	student := &models.Student{ID: "s1", ReferralEarnings: 5000, ReferredStudentBonus: 1000}
	repo := newMockLedgerStudentRepo(student)
	svc := newTestReferralService(repo, newMockPaymentRepo())

	_, err := svc.AddPayment(context.Background(), models.PaymentKindBonus, "s1", "user-1", AddPaymentRequest{Amount: 1500})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrOverpayment.Code, appErr.Code)

	payment, err := svc.AddPayment(context.Background(), models.PaymentKindBonus, "s1", "user-1", AddPaymentRequest{Amount: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), payment.Amount)
}

func TestAddPaymentUnknownStudent(t *testing.T) {
	svc := newTestReferralService(newMockLedgerStudentRepo(), newMockPaymentRepo())

	_, err := svc.AddPayment(context.Background(), models.PaymentKindReferral, "ghost", "user-1", AddPaymentRequest{Amount: 100})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
