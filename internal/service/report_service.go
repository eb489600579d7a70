package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linguakurs/crm-api/internal/models"
	appErrors "github.com/linguakurs/crm-api/pkg/errors"
	"github.com/linguakurs/crm-api/pkg/export"
)

// enrollmentKeywords classifies a free-text interview outcome as an
// enrollment. Case-insensitive substring match, carried over from how the
// outcomes were historically recorded.
var enrollmentKeywords = []string{"kayıt oldu", "kaydoldu", "kayıt edildi", "kayıt", "enrolled", "registered"}

type reportInterviewRepository interface {
	ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Interview, error)
}

type reportStudentRepository interface {
	ListReferredInRange(ctx context.Context, from, to time.Time) ([]models.Student, error)
	CountEnrolledReferredInRange(ctx context.Context, from, to time.Time) (int, error)
}

type reportPaymentRepository interface {
	SumInRange(ctx context.Context, kind models.PaymentKind, from, to time.Time) (int64, error)
}

type reportUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// reportCachePattern matches every cached report range. Writes that shift
// report figures (interviews, ledger credits, payments) invalidate with it so
// reports never serve stale numbers for up to the TTL.
const reportCachePattern = "reports:*"

type reportCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheObserver interface {
	RecordCacheOperation(hit bool, duration time.Duration)
}

// ReportService aggregates interview activity and referral-ledger figures
// over a closed date range, with a Redis cache in front.
type ReportService struct {
	interviews reportInterviewRepository
	students   reportStudentRepository
	payments   reportPaymentRepository
	users      reportUserRepository
	cache      reportCache
	metrics    cacheObserver
	logger     *zap.Logger
	unitAmount int64
	cacheTTL   time.Duration
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
}

// NewReportService constructs the report service.
func NewReportService(interviews reportInterviewRepository, students reportStudentRepository, payments reportPaymentRepository, users reportUserRepository, cache reportCache, metrics cacheObserver, logger *zap.Logger, unitAmount int64, cacheTTL time.Duration) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if unitAmount <= 0 {
		unitAmount = 1000
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &ReportService{
		interviews: interviews,
		students:   students,
		payments:   payments,
		users:      users,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		unitAmount: unitAmount,
		cacheTTL:   cacheTTL,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
	}
}

// Generate builds the report for [start, end], both dates inclusive for the
// whole day. Results are cached per range.
func (s *ReportService) Generate(ctx context.Context, start, end time.Time) (*models.ReportData, error) {
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}

	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	to := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), end.Location())

	key := fmt.Sprintf("reports:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	if s.cache != nil {
		began := time.Now()
		var cached models.ReportData
		err := s.cache.Get(ctx, key, &cached)
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(err == nil, time.Since(began))
		}
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	report, err := s.build(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.cacheTTL); err != nil {
			s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return report, nil
}

func (s *ReportService) build(ctx context.Context, from, to time.Time) (*models.ReportData, error) {
	report := &models.ReportData{
		StartDate:         from.Format("2006-01-02"),
		EndDate:           to.Format("2006-01-02"),
		InterviewsByDate:  map[string]int{},
		InterviewsByUser:  map[string]int{},
		EnrollmentsByUser: map[string]int{},
	}

	interviews, err := s.interviews.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interviews for report")
	}

	userNames := map[string]string{}
	for _, iv := range interviews {
		report.TotalInterviews++
		switch iv.Type {
		case models.ContactPhone:
			report.PhoneInterviews++
		case models.ContactFaceToFace:
			report.FaceToFaceInterviews++
		}
		report.InterviewsByDate[iv.Date.Format("2006-01-02")]++

		user := s.userLabel(ctx, userNames, iv.UserID)
		report.InterviewsByUser[user]++
		if IsEnrollmentOutcome(iv.Outcome) {
			report.EnrolledInterviews++
			report.EnrollmentsByUser[user]++
		}
	}

	referred, err := s.students.ListReferredInRange(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load referred students for report")
	}
	report.ReferredStudents = len(referred)

	enrolledReferred, err := s.students.CountEnrolledReferredInRange(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrolled referred students")
	}
	report.TotalPotentialReferralEarnings = int64(enrolledReferred) * s.unitAmount
	report.TotalPotentialBonusPayments = int64(enrolledReferred) * s.unitAmount

	if report.TotalReferralPaymentsMade, err = s.payments.SumInRange(ctx, models.PaymentKindReferral, from, to); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum referral payments")
	}
	if report.TotalBonusPaymentsMade, err = s.payments.SumInRange(ctx, models.PaymentKindBonus, from, to); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum bonus payments")
	}

	report.UnpaidReferralEarnings = clampZero(report.TotalPotentialReferralEarnings - report.TotalReferralPaymentsMade)
	report.UnpaidBonusPayments = clampZero(report.TotalPotentialBonusPayments - report.TotalBonusPaymentsMade)

	return report, nil
}

// ExportCSV renders the report for the range as CSV bytes.
func (s *ReportService) ExportCSV(ctx context.Context, start, end time.Time) ([]byte, error) {
	report, err := s.Generate(ctx, start, end)
	if err != nil {
		return nil, err
	}
	data, err := s.csv.Render(reportDataset(report))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
	}
	return data, nil
}

// ExportPDF renders the report for the range as PDF bytes.
func (s *ReportService) ExportPDF(ctx context.Context, start, end time.Time) ([]byte, error) {
	report, err := s.Generate(ctx, start, end)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("Activity report %s to %s", report.StartDate, report.EndDate)
	data, err := s.pdf.Render(reportDataset(report), title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
	}
	return data, nil
}

func (s *ReportService) userLabel(ctx context.Context, memo map[string]string, userID string) string {
	if userID == "" {
		return "unknown"
	}
	if label, ok := memo[userID]; ok {
		return label
	}
	label := userID
	if s.users != nil {
		if user, err := s.users.FindByID(ctx, userID); err == nil {
			label = user.Email
		}
	}
	memo[userID] = label
	return label
}

// IsEnrollmentOutcome reports whether a free-text interview outcome reads as
// an enrollment.
func IsEnrollmentOutcome(outcome string) bool {
	lower := strings.ToLower(outcome)
	for _, keyword := range enrollmentKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func clampZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// reportDataset flattens the aggregate into a two-column table for export.
func reportDataset(report *models.ReportData) export.Dataset {
	rows := []map[string]string{
		row("Start date", report.StartDate),
		row("End date", report.EndDate),
		row("Total interviews", fmt.Sprintf("%d", report.TotalInterviews)),
		row("Phone interviews", fmt.Sprintf("%d", report.PhoneInterviews)),
		row("Face-to-face interviews", fmt.Sprintf("%d", report.FaceToFaceInterviews)),
		row("Enrollment interviews", fmt.Sprintf("%d", report.EnrolledInterviews)),
		row("Referred students", fmt.Sprintf("%d", report.ReferredStudents)),
		row("Potential referral earnings", fmt.Sprintf("%d", report.TotalPotentialReferralEarnings)),
		row("Potential bonus payments", fmt.Sprintf("%d", report.TotalPotentialBonusPayments)),
		row("Referral payments made", fmt.Sprintf("%d", report.TotalReferralPaymentsMade)),
		row("Bonus payments made", fmt.Sprintf("%d", report.TotalBonusPaymentsMade)),
		row("Unpaid referral earnings", fmt.Sprintf("%d", report.UnpaidReferralEarnings)),
		row("Unpaid bonus payments", fmt.Sprintf("%d", report.UnpaidBonusPayments)),
	}
	for _, key := range sortedKeys(report.InterviewsByDate) {
		rows = append(rows, row("Interviews on "+key, fmt.Sprintf("%d", report.InterviewsByDate[key])))
	}
	for _, key := range sortedKeys(report.InterviewsByUser) {
		rows = append(rows, row("Interviews by "+key, fmt.Sprintf("%d", report.InterviewsByUser[key])))
	}
	for _, key := range sortedKeys(report.EnrollmentsByUser) {
		rows = append(rows, row("Enrollments by "+key, fmt.Sprintf("%d", report.EnrollmentsByUser[key])))
	}
	return export.Dataset{Headers: []string{"Metric", "Value"}, Rows: rows}
}

func row(metric, value string) map[string]string {
	return map[string]string{"Metric": metric, "Value": value}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
