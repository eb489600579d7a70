package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/linguakurs/crm-api/internal/models"
	appErrors "github.com/linguakurs/crm-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindReferrerInfo(ctx context.Context, studentID string) (*models.ReferrerInfo, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type referralEngine interface {
	ResolveCode(ctx context.Context, code string) (*models.Student, error)
	EnsureCode(ctx context.Context, student *models.Student) (string, error)
	CreditEnrollment(ctx context.Context, student *models.Student, previousStatus string) error
}

type studentInterviewLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Interview, error)
}

type studentQuoteLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.PriceQuote, error)
}

type studentPaymentLister interface {
	ListByStudent(ctx context.Context, kind models.PaymentKind, studentID string) ([]models.Payment, error)
}

// CreateStudentRequest holds payload for registering students.
type CreateStudentRequest struct {
	Name                 string     `json:"name" validate:"required"`
	Surname              string     `json:"surname" validate:"required"`
	Phone                string     `json:"phone" validate:"required"`
	Email                string     `json:"email" validate:"omitempty,email"`
	ContactType          string     `json:"contact_type" validate:"required,oneof=telefon yuz-yuze"`
	RegistrationType     string     `json:"registration_type" validate:"required,oneof=yeni-kayit kayit-yenileme"`
	Status               string     `json:"status" validate:"required,oneof=new interested enrolled cancelled"`
	EducationLevel       string     `json:"education_level" validate:"required,oneof=ilkogretim lise universite yetiskin"`
	Languages            []string   `json:"languages"`
	InterestedLevels     []string   `json:"interested_levels"`
	PlacementTestLevel   *string    `json:"placement_test_level"`
	PlacementTestTeacher string     `json:"placement_test_teacher"`
	Notes                string     `json:"notes"`
	FollowUpDate         *time.Time `json:"follow_up_date"`
	LastContact          *time.Time `json:"last_contact"`
	// ReferralCode is the code of another student entered at registration.
	// An unknown code is ignored; a known one links this student as referred.
	ReferralCode string `json:"referral_code"`
}

// UpdateStudentRequest holds a partial student update. Nil fields are left
// untouched. The referral linkage and code are immutable and deliberately
// not part of this payload.
type UpdateStudentRequest struct {
	Name                 *string    `json:"name"`
	Surname              *string    `json:"surname"`
	Phone                *string    `json:"phone"`
	Email                *string    `json:"email"`
	ContactType          *string    `json:"contact_type" validate:"omitempty,oneof=telefon yuz-yuze"`
	RegistrationType     *string    `json:"registration_type" validate:"omitempty,oneof=yeni-kayit kayit-yenileme"`
	Status               *string    `json:"status" validate:"omitempty,oneof=new interested enrolled cancelled"`
	EducationLevel       *string    `json:"education_level" validate:"omitempty,oneof=ilkogretim lise universite yetiskin"`
	Languages            []string   `json:"languages"`
	InterestedLevels     []string   `json:"interested_levels"`
	PlacementTestLevel   *string    `json:"placement_test_level"`
	PlacementTestTeacher *string    `json:"placement_test_teacher"`
	Notes                *string    `json:"notes"`
	FollowUpDate         *time.Time `json:"follow_up_date"`
	LastContact          *time.Time `json:"last_contact"`
}

// StudentService handles student use-cases and drives the referral ledger
// engine on status transitions.
type StudentService struct {
	repo       studentRepository
	referrals  referralEngine
	interviews studentInterviewLister
	quotes     studentQuoteLister
	payments   studentPaymentLister
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, referrals referralEngine, interviews studentInterviewLister, quotes studentQuoteLister, payments studentPaymentLister, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:       repo,
		referrals:  referrals,
		interviews: interviews,
		quotes:     quotes,
		payments:   payments,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// List returns students and pagination metadata. A follow-up bucket filter is
// resolved into a concrete date window before hitting the store so paging
// stays consistent.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if filter.FollowUpBucket != "" {
		filter.FollowUpBefore, filter.FollowUpFrom, filter.FollowUpUntil = FollowUpWindow(filter.FollowUpBucket, s.now())
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a student with its owned collections and ledger summary.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	detail := &models.StudentDetail{Student: *student}

	if detail.Interviews, err = s.interviews.ListByStudent(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interviews")
	}
	if detail.PriceQuotes, err = s.quotes.ListByStudent(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load price quotes")
	}
	if detail.ReferralPayments, err = s.payments.ListByStudent(ctx, models.PaymentKindReferral, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load referral payments")
	}
	if detail.BonusPayments, err = s.payments.ListByStudent(ctx, models.PaymentKindBonus, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bonus payments")
	}
	for _, p := range detail.ReferralPayments {
		detail.TotalReferralEarningsPaid += p.Amount
	}
	for _, p := range detail.BonusPayments {
		detail.TotalReferredBonusPaid += p.Amount
	}
	if detail.Referrer, err = s.repo.FindReferrerInfo(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load referrer")
	}
	return detail, nil
}

// Create registers a new student, optionally linking it to a referrer via an
// entered referral code, and fires the ledger engine when the student is
// enrolled right away.
func (s *StudentService) Create(ctx context.Context, userID string, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	var referredBy *string
	if req.ReferralCode != "" {
		referrer, err := s.referrals.ResolveCode(ctx, req.ReferralCode)
		if err != nil {
			return nil, err
		}
		if referrer != nil {
			referredBy = &referrer.ID
		}
	}

	languages := req.Languages
	if len(languages) == 0 {
		languages = []string{"İngilizce"}
	}

	student := &models.Student{
		UserID:               userID,
		Name:                 req.Name,
		Surname:              req.Surname,
		Phone:                req.Phone,
		Email:                req.Email,
		ContactType:          req.ContactType,
		RegistrationType:     req.RegistrationType,
		Status:               req.Status,
		EducationLevel:       req.EducationLevel,
		Languages:            languages,
		InterestedLevels:     req.InterestedLevels,
		PlacementTestLevel:   req.PlacementTestLevel,
		PlacementTestTeacher: req.PlacementTestTeacher,
		Notes:                req.Notes,
		FollowUpDate:         req.FollowUpDate,
		LastContact:          req.LastContact,
		ReferredByStudentID:  referredBy,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	if student.Status == models.StatusEnrolled {
		if _, err := s.referrals.EnsureCode(ctx, student); err != nil {
			s.logger.Error("referral code issuance failed", zap.String("student_id", student.ID), zap.Error(err))
		}
		if err := s.referrals.CreditEnrollment(ctx, student, models.StatusNew); err != nil {
			s.logger.Error("referral credit failed", zap.String("student_id", student.ID), zap.Error(err))
		}
	}

	return student, nil
}

// Update applies a partial edit and fires the ledger engine when the edit
// moves the student into enrolled status.
func (s *StudentService) Update(ctx context.Context, id, userID string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	previousStatus := student.Status
	applyStudentUpdate(student, req)
	student.UserID = userID

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	if student.Status == models.StatusEnrolled {
		if _, err := s.referrals.EnsureCode(ctx, student); err != nil {
			s.logger.Error("referral code issuance failed", zap.String("student_id", student.ID), zap.Error(err))
		}
		if err := s.referrals.CreditEnrollment(ctx, student, previousStatus); err != nil {
			s.logger.Error("referral credit failed", zap.String("student_id", student.ID), zap.Error(err))
		}
	}

	return student, nil
}

// Delete removes a student and, through the store, its owned records.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

func applyStudentUpdate(student *models.Student, req UpdateStudentRequest) {
	if req.Name != nil {
		student.Name = *req.Name
	}
	if req.Surname != nil {
		student.Surname = *req.Surname
	}
	if req.Phone != nil {
		student.Phone = *req.Phone
	}
	if req.Email != nil {
		student.Email = *req.Email
	}
	if req.ContactType != nil {
		student.ContactType = *req.ContactType
	}
	if req.RegistrationType != nil {
		student.RegistrationType = *req.RegistrationType
	}
	if req.Status != nil {
		student.Status = *req.Status
	}
	if req.EducationLevel != nil {
		student.EducationLevel = *req.EducationLevel
	}
	if req.Languages != nil {
		student.Languages = req.Languages
	}
	if req.InterestedLevels != nil {
		student.InterestedLevels = req.InterestedLevels
	}
	if req.PlacementTestLevel != nil {
		student.PlacementTestLevel = req.PlacementTestLevel
	}
	if req.PlacementTestTeacher != nil {
		student.PlacementTestTeacher = *req.PlacementTestTeacher
	}
	if req.Notes != nil {
		student.Notes = *req.Notes
	}
	if req.FollowUpDate != nil {
		student.FollowUpDate = req.FollowUpDate
	}
	if req.LastContact != nil {
		student.LastContact = req.LastContact
	}
}
