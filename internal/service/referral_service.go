package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/linguakurs/crm-api/internal/models"
	appErrors "github.com/linguakurs/crm-api/pkg/errors"
)

// referralCodeLength is the id-derived portion of a referral code.
const referralCodeLength = 6

type referralStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByReferralCode(ctx context.Context, code string) (*models.Student, error)
	ExistsByReferralCode(ctx context.Context, code string) (bool, error)
	SetReferralCode(ctx context.Context, id, code string) error
	CreditReferral(ctx context.Context, referrerID, referredID string, amount int64) (bool, error)
	ListReferredBy(ctx context.Context, referrerID string) ([]models.Student, error)
}

type ledgerPaymentRepository interface {
	Create(ctx context.Context, kind models.PaymentKind, payment *models.Payment) error
	ListByStudent(ctx context.Context, kind models.PaymentKind, studentID string) ([]models.Payment, error)
	SumByStudent(ctx context.Context, kind models.PaymentKind, studentID string) (int64, error)
}

// AddPaymentRequest is the payload for settling part of a ledger balance.
type AddPaymentRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Notes  string `json:"notes"`
}

type creditObserver interface {
	RecordReferralCredit()
}

// ReferralService is the referral-earnings ledger engine. It decides when a
// referral code is minted, when the credit pair is applied, and how payments
// reconcile against earned totals.
type ReferralService struct {
	students   referralStudentRepository
	payments   ledgerPaymentRepository
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    creditObserver
	reports    reportCacheInvalidator
	unitAmount int64
}

// WithMetrics attaches a credit counter. Optional.
func (s *ReferralService) WithMetrics(metrics creditObserver) *ReferralService {
	s.metrics = metrics
	return s
}

// WithReportCache attaches the report cache so credits and payments evict
// cached report ranges. Optional.
func (s *ReferralService) WithReportCache(reports reportCacheInvalidator) *ReferralService {
	s.reports = reports
	return s
}

func (s *ReferralService) invalidateReports(ctx context.Context) {
	if s.reports == nil {
		return
	}
	if err := s.reports.DeleteByPattern(ctx, reportCachePattern); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Error(err))
	}
}

// NewReferralService constructs the ledger engine.
func NewReferralService(students referralStudentRepository, payments ledgerPaymentRepository, validate *validator.Validate, logger *zap.Logger, unitAmount int64) *ReferralService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if unitAmount <= 0 {
		unitAmount = 1000
	}
	return &ReferralService{students: students, payments: payments, validator: validate, logger: logger, unitAmount: unitAmount}
}

// UnitAmount returns the per-referral credit amount.
func (s *ReferralService) UnitAmount() int64 {
	return s.unitAmount
}

// ResolveCode looks up the student owning a referral code. An unknown code is
// a soft miss: the linkage is simply not established, no error is returned.
func (s *ReferralService) ResolveCode(ctx context.Context, code string) (*models.Student, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}
	referrer, err := s.students.FindByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("referral code not found", zap.String("code", code))
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve referral code")
	}
	return referrer, nil
}

// EnsureCode mints a referral code for a student who has reached enrolled
// status. Idempotent: an already-issued code is returned untouched. The code
// is derived from the student's initials and a slice of its id; the slice
// window slides on collision so issued codes stay unique.
func (s *ReferralService) EnsureCode(ctx context.Context, student *models.Student) (string, error) {
	if student.ReferralCode != nil && *student.ReferralCode != "" {
		return *student.ReferralCode, nil
	}

	compact := strings.ToUpper(strings.ReplaceAll(student.ID, "-", ""))
	initials := initialsOf(student.Name, student.Surname)

	for offset := 0; offset+referralCodeLength <= len(compact); offset++ {
		code := initials + compact[offset:offset+referralCodeLength]
		taken, err := s.students.ExistsByReferralCode(ctx, code)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify referral code uniqueness")
		}
		if taken {
			continue
		}
		if err := s.students.SetReferralCode(ctx, student.ID, code); err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist referral code")
		}
		student.ReferralCode = &code
		s.logger.Info("referral code issued", zap.String("student_id", student.ID), zap.String("code", code))
		return code, nil
	}

	return "", appErrors.Clone(appErrors.ErrConflict, "could not derive a unique referral code")
}

// CreditEnrollment applies the referral credit pair when a referred student
// enters enrolled status for the first time. The referrer earns the unit
// amount and the referred student's bonus is set to the unit amount, in one
// atomic write keyed by the referred student, so re-enrollment after a
// cancellation never double-credits.
func (s *ReferralService) CreditEnrollment(ctx context.Context, student *models.Student, previousStatus string) error {
	if student.Status != models.StatusEnrolled {
		return nil
	}
	if previousStatus == models.StatusEnrolled {
		return nil
	}
	if student.ReferredByStudentID == nil || *student.ReferredByStudentID == "" {
		return nil
	}

	credited, err := s.students.CreditReferral(ctx, *student.ReferredByStudentID, student.ID, s.unitAmount)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply referral credit")
	}
	if !credited {
		s.logger.Info("referral already credited, skipping",
			zap.String("student_id", student.ID),
			zap.String("referrer_id", *student.ReferredByStudentID))
		return nil
	}

	student.ReferredStudentBonus = s.unitAmount
	if s.metrics != nil {
		s.metrics.RecordReferralCredit()
	}
	s.invalidateReports(ctx)
	s.logger.Info("referral credit applied",
		zap.String("student_id", student.ID),
		zap.String("referrer_id", *student.ReferredByStudentID),
		zap.Int64("amount", s.unitAmount))
	return nil
}

// Balance computes the reconciled ledger balance for one side. Outstanding is
// derived, never stored: earned minus the payment sum, clamped at zero.
func (s *ReferralService) Balance(ctx context.Context, kind models.PaymentKind, studentID string) (*models.LedgerBalance, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment kind")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return s.balanceOf(ctx, kind, student)
}

func (s *ReferralService) balanceOf(ctx context.Context, kind models.PaymentKind, student *models.Student) (*models.LedgerBalance, error) {
	earned := student.ReferralEarnings
	if kind == models.PaymentKindBonus {
		earned = student.ReferredStudentBonus
	}
	paid, err := s.payments.SumByStudent(ctx, kind, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum payments")
	}
	outstanding := earned - paid
	if outstanding < 0 {
		outstanding = 0
	}
	return &models.LedgerBalance{Kind: kind, Earned: earned, Paid: paid, Outstanding: outstanding}, nil
}

// AddPayment appends a settlement against one ledger side. Amounts above the
// outstanding balance are rejected here, not only at the form layer.
func (s *ReferralService) AddPayment(ctx context.Context, kind models.PaymentKind, studentID, userID string, req AddPaymentRequest) (*models.Payment, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment kind")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	balance, err := s.balanceOf(ctx, kind, student)
	if err != nil {
		return nil, err
	}
	if req.Amount > balance.Outstanding {
		return nil, appErrors.Clone(appErrors.ErrOverpayment,
			fmt.Sprintf("amount %d exceeds outstanding balance %d", req.Amount, balance.Outstanding))
	}

	payment := &models.Payment{
		StudentID: studentID,
		Amount:    req.Amount,
		UserID:    userID,
		Notes:     req.Notes,
	}
	if err := s.payments.Create(ctx, kind, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	s.invalidateReports(ctx)
	return payment, nil
}

// ListPayments returns a student's payments of one kind.
func (s *ReferralService) ListPayments(ctx context.Context, kind models.PaymentKind, studentID string) ([]models.Payment, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment kind")
	}
	payments, err := s.payments.ListByStudent(ctx, kind, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// ReferredStudents lists the students a referrer brought in.
func (s *ReferralService) ReferredStudents(ctx context.Context, referrerID string) ([]models.Student, error) {
	students, err := s.students.ListReferredBy(ctx, referrerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list referred students")
	}
	return students, nil
}

// initialsOf builds the two-letter prefix of a referral code. Missing names
// fall back to X so the code keeps its shape.
func initialsOf(name, surname string) string {
	return string(firstLetter(name)) + string(firstLetter(surname))
}

func firstLetter(s string) rune {
	for _, r := range strings.TrimSpace(s) {
		return unicode.ToUpper(r)
	}
	return 'X'
}
