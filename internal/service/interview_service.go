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

type interviewRepository interface {
	Create(ctx context.Context, interview *models.Interview) error
	ListByStudent(ctx context.Context, studentID string) ([]models.Interview, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// CreateInterviewRequest is the payload for logging a contact event.
type CreateInterviewRequest struct {
	Date         time.Time  `json:"date" validate:"required"`
	Type         string     `json:"type" validate:"required,oneof=telefon yuz-yuze"`
	Notes        string     `json:"notes" validate:"required"`
	Outcome      string     `json:"outcome"`
	FollowUpDate *time.Time `json:"follow_up_date"`
}

// InterviewService handles interview use-cases. Interviews are append-only.
type InterviewService struct {
	repo      interviewRepository
	students  studentFinder
	reports   reportCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// WithReportCache attaches the report cache so logged interviews evict
// cached report ranges. Optional.
func (s *InterviewService) WithReportCache(reports reportCacheInvalidator) *InterviewService {
	s.reports = reports
	return s
}

// NewInterviewService constructs the interview service.
func NewInterviewService(repo interviewRepository, students studentFinder, validate *validator.Validate, logger *zap.Logger) *InterviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterviewService{repo: repo, students: students, validator: validate, logger: logger}
}

// Create logs an interview under a student.
func (s *InterviewService) Create(ctx context.Context, studentID, userID string, req CreateInterviewRequest) (*models.Interview, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid interview payload")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	interview := &models.Interview{
		UserID:       userID,
		StudentID:    studentID,
		Date:         req.Date,
		Type:         req.Type,
		Notes:        req.Notes,
		Outcome:      req.Outcome,
		FollowUpDate: req.FollowUpDate,
	}
	if err := s.repo.Create(ctx, interview); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create interview")
	}
	if s.reports != nil {
		if err := s.reports.DeleteByPattern(ctx, reportCachePattern); err != nil {
			s.logger.Warn("report cache invalidation failed", zap.Error(err))
		}
	}
	return interview, nil
}

// ListByStudent returns a student's interviews, newest first.
func (s *InterviewService) ListByStudent(ctx context.Context, studentID string) ([]models.Interview, error) {
	interviews, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list interviews")
	}
	return interviews, nil
}
