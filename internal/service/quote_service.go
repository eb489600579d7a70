package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/linguakurs/crm-api/internal/models"
	appErrors "github.com/linguakurs/crm-api/pkg/errors"
)

type quoteRepository interface {
	Create(ctx context.Context, quote *models.PriceQuote) error
	ListByStudent(ctx context.Context, studentID string) ([]models.PriceQuote, error)
}

// CreateQuoteRequest is the payload for costing a course proposal.
type CreateQuoteRequest struct {
	CourseLevel      string   `json:"course_level" validate:"required"`
	CourseDuration   string   `json:"course_duration" validate:"required"`
	TotalPrice       float64  `json:"total_price" validate:"gte=0"`
	CashPrice        *float64 `json:"cash_price" validate:"omitempty,gte=0"`
	InstallmentPrice *float64 `json:"installment_price" validate:"omitempty,gte=0"`
	PaymentType      string   `json:"payment_type" validate:"required,oneof=pesin taksit"`
	InstallmentCount *int     `json:"installment_count" validate:"omitempty,gt=0"`
	Discount         float64  `json:"discount" validate:"gte=0"`
	Notes            string   `json:"notes"`
	IsAccepted       bool     `json:"is_accepted"`
}

// QuoteService handles price-quote use-cases. Quotes are immutable once
// created; the derived price fields are computed here, never trusted from
// the client.
type QuoteService struct {
	repo      quoteRepository
	students  studentFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQuoteService constructs the quote service.
func NewQuoteService(repo quoteRepository, students studentFinder, validate *validator.Validate, logger *zap.Logger) *QuoteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteService{repo: repo, students: students, validator: validate, logger: logger}
}

// Create costs and stores a quote under a student.
func (s *QuoteService) Create(ctx context.Context, studentID, userID string, req CreateQuoteRequest) (*models.PriceQuote, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quote payload")
	}
	if req.PaymentType == models.PaymentInstallment && (req.InstallmentCount == nil || *req.InstallmentCount <= 0) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "installment quotes require an installment count")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	quote := &models.PriceQuote{
		UserID:           userID,
		StudentID:        studentID,
		CourseLevel:      req.CourseLevel,
		CourseDuration:   req.CourseDuration,
		TotalPrice:       req.TotalPrice,
		CashPrice:        req.CashPrice,
		InstallmentPrice: req.InstallmentPrice,
		PaymentType:      req.PaymentType,
		InstallmentCount: req.InstallmentCount,
		Discount:         req.Discount,
		Notes:            req.Notes,
		IsAccepted:       req.IsAccepted,
	}
	priceQuote(quote)

	if err := s.repo.Create(ctx, quote); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quote")
	}
	return quote, nil
}

// ListByStudent returns a student's quotes, newest first.
func (s *QuoteService) ListByStudent(ctx context.Context, studentID string) ([]models.PriceQuote, error) {
	quotes, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quotes")
	}
	return quotes, nil
}

// priceQuote fills the derived fields: the base price follows the payment
// type, the final price subtracts the discount, and installment quotes get a
// per-installment amount rounded to two decimals.
func priceQuote(quote *models.PriceQuote) {
	base := quote.TotalPrice
	switch quote.PaymentType {
	case models.PaymentCash:
		if quote.CashPrice != nil {
			base = *quote.CashPrice
		}
	case models.PaymentInstallment:
		if quote.InstallmentPrice != nil {
			base = *quote.InstallmentPrice
		}
	}

	quote.FinalPrice = base - quote.Discount

	if quote.PaymentType == models.PaymentInstallment && quote.InstallmentCount != nil && *quote.InstallmentCount > 0 {
		amount := round2(quote.FinalPrice / float64(*quote.InstallmentCount))
		quote.InstallmentAmount = &amount
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
