package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/linguakurs/crm-api/internal/models"
	appErrors "github.com/linguakurs/crm-api/pkg/errors"
)

type mockReportInterviews struct {
	items []models.Interview
	calls int
}

func (m *mockReportInterviews) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Interview, error) {
	m.calls++
	return m.items, nil
}

type mockReportStudents struct {
	referred []models.Student
	enrolled int
}

func (m *mockReportStudents) ListReferredInRange(ctx context.Context, from, to time.Time) ([]models.Student, error) {
	return m.referred, nil
}

func (m *mockReportStudents) CountEnrolledReferredInRange(ctx context.Context, from, to time.Time) (int, error) {
	return m.enrolled, nil
}

type mockReportPayments struct {
	referralSum int64
	bonusSum    int64
}

func (m *mockReportPayments) SumInRange(ctx context.Context, kind models.PaymentKind, from, to time.Time) (int64, error) {
	if kind == models.PaymentKindReferral {
		return m.referralSum, nil
	}
	return m.bonusSum, nil
}

type mockReportUsers struct {
	emails map[string]string
}

func (m *mockReportUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if email, ok := m.emails[id]; ok {
		return &models.User{ID: id, Email: email}, nil
	}
	return nil, context.Canceled
}

type memoryCache struct {
	values map[string][]byte
	sets   int
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	if _, ok := m.values[key]; ok {
		// Test doubles only need the hit/miss signal; contents are covered by
		// the repository cache tests.
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	m.values[key] = []byte("cached")
	m.sets++
	return nil
}

func TestIsEnrollmentOutcome(t *testing.T) {
	cases := []struct {
		outcome string
		want    bool
	}{
		{"Kayıt oldu", true},
		{"kaydoldu, çok memnun", true},
		{"KAYIT EDİLDİ", true},
		{"enrolled after trial lesson", true},
		{"registered for A1.1", true},
		{"tekrar aranacak", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsEnrollmentOutcome(tc.outcome), tc.outcome)
	}
}

func TestReportAggregation(t *testing.T) {
	day1 := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 4, 11, 0, 0, 0, time.UTC)
	interviews := &mockReportInterviews{items: []models.Interview{
		{UserID: "u1", Type: models.ContactPhone, Date: day1, Outcome: "kayıt oldu"},
		{UserID: "u1", Type: models.ContactFaceToFace, Date: day1, Outcome: "düşünecek"},
		{UserID: "u2", Type: models.ContactPhone, Date: day2, Outcome: "enrolled"},
	}}
	students := &mockReportStudents{
		referred: []models.Student{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		enrolled: 2,
	}
	payments := &mockReportPayments{referralSum: 1500, bonusSum: 2500}
	users := &mockReportUsers{emails: map[string]string{"u1": "ali@kurs.example", "u2": "veli@kurs.example"}}

	svc := NewReportService(interviews, students, payments, users, nil, nil, zap.NewNop(), 1000, time.Minute)

	report, err := svc.Generate(context.Background(), day1, day2)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalInterviews)
	assert.Equal(t, 2, report.PhoneInterviews)
	assert.Equal(t, 1, report.FaceToFaceInterviews)
	assert.Equal(t, 2, report.EnrolledInterviews)
	assert.Equal(t, 2, report.InterviewsByDate["2025-03-03"])
	assert.Equal(t, 1, report.InterviewsByDate["2025-03-04"])
	assert.Equal(t, 2, report.InterviewsByUser["ali@kurs.example"])
	assert.Equal(t, 1, report.EnrollmentsByUser["ali@kurs.example"])
	assert.Equal(t, 1, report.EnrollmentsByUser["veli@kurs.example"])

	assert.Equal(t, 3, report.ReferredStudents)
	assert.Equal(t, int64(2000), report.TotalPotentialReferralEarnings)
	assert.Equal(t, int64(2000), report.TotalPotentialBonusPayments)
	assert.Equal(t, int64(1500), report.TotalReferralPaymentsMade)
	assert.Equal(t, int64(500), report.UnpaidReferralEarnings)
	// Payments above the potential total clamp at zero instead of going negative.
	assert.Equal(t, int64(0), report.UnpaidBonusPayments)
}

func TestReportUsesCache(t *testing.T) {
	interviews := &mockReportInterviews{}
	students := &mockReportStudents{}
	payments := &mockReportPayments{}
	cache := &memoryCache{}
	svc := NewReportService(interviews, students, payments, &mockReportUsers{}, cache, nil, zap.NewNop(), 1000, time.Minute)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)

	_, err := svc.Generate(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, interviews.calls)
	assert.Equal(t, 1, cache.sets)

	_, err = svc.Generate(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, interviews.calls, "second generation should be served from cache")
}

func TestReportRejectsInvertedRange(t *testing.T) {
	svc := NewReportService(&mockReportInterviews{}, &mockReportStudents{}, &mockReportPayments{}, &mockReportUsers{}, nil, nil, zap.NewNop(), 1000, time.Minute)

	_, err := svc.Generate(context.Background(), time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestReportExportCSV(t *testing.T) {
	interviews := &mockReportInterviews{items: []models.Interview{
		{UserID: "u1", Type: models.ContactPhone, Date: time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), Outcome: "kayıt"},
	}}
	svc := NewReportService(interviews, &mockReportStudents{}, &mockReportPayments{}, &mockReportUsers{}, nil, nil, zap.NewNop(), 1000, time.Minute)

	data, err := svc.ExportCSV(context.Background(), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Metric,Value")
	assert.Contains(t, string(data), "Total interviews,1")
}
