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

type mockStudentRepo struct {
	students   map[string]*models.Student
	listResult []models.Student
	listTotal  int
	lastFilter models.StudentFilter
	deleted    []string
	referrer   *models.ReferrerInfo
}

func newMockStudentRepo(students ...*models.Student) *mockStudentRepo {
	repo := &mockStudentRepo{students: make(map[string]*models.Student)}
	for _, s := range students {
		repo.students[s.ID] = s
	}
	return repo
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.lastFilter = filter
	return m.listResult, m.listTotal, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindReferrerInfo(ctx context.Context, studentID string) (*models.ReferrerInfo, error) {
	return m.referrer, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = "generated"
	}
	student.CreatedAt = time.Now().UTC()
	cp := *student
	m.students[student.ID] = &cp
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	cp := *student
	m.students[student.ID] = &cp
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.students, id)
	return nil
}

// mockReferralEngine records how the student service drives the ledger.
type mockReferralEngine struct {
	resolved     map[string]*models.Student
	ensuredFor   []string
	creditedFor  []string
	previousSeen []string
}

func (m *mockReferralEngine) ResolveCode(ctx context.Context, code string) (*models.Student, error) {
	if s, ok := m.resolved[code]; ok {
		return s, nil
	}
	return nil, nil
}

func (m *mockReferralEngine) EnsureCode(ctx context.Context, student *models.Student) (string, error) {
	m.ensuredFor = append(m.ensuredFor, student.ID)
	return "CODE1234", nil
}

func (m *mockReferralEngine) CreditEnrollment(ctx context.Context, student *models.Student, previousStatus string) error {
	m.creditedFor = append(m.creditedFor, student.ID)
	m.previousSeen = append(m.previousSeen, previousStatus)
	return nil
}

type mockInterviewLister struct{ items []models.Interview }

func (m *mockInterviewLister) ListByStudent(ctx context.Context, studentID string) ([]models.Interview, error) {
	return m.items, nil
}

type mockQuoteLister struct{ items []models.PriceQuote }

func (m *mockQuoteLister) ListByStudent(ctx context.Context, studentID string) ([]models.PriceQuote, error) {
	return m.items, nil
}

func newTestStudentService(repo *mockStudentRepo, engine *mockReferralEngine, payments *mockPaymentRepo) *StudentService {
	if payments == nil {
		payments = newMockPaymentRepo()
	}
	return NewStudentService(repo, engine, &mockInterviewLister{}, &mockQuoteLister{}, payments, validator.New(), zap.NewNop())
}

func validCreateRequest() CreateStudentRequest {
	return CreateStudentRequest{
		Name:             "Ayşe",
		Surname:          "Yılmaz",
		Phone:            "05551112233",
		ContactType:      models.ContactPhone,
		RegistrationType: models.RegistrationNew,
		Status:           models.StatusNew,
		EducationLevel:   models.EducationAdult,
	}
}

func TestStudentCreateLinksReferrerByCode(t *testing.T) {
	repo := newMockStudentRepo()
	engine := &mockReferralEngine{resolved: map[string]*models.Student{"AY5F2D7A": {ID: "ref-1"}}}
	svc := newTestStudentService(repo, engine, nil)

	req := validCreateRequest()
	req.ReferralCode = "AY5F2D7A"
	student, err := svc.Create(context.Background(), "user-1", req)
	require.NoError(t, err)
	require.NotNil(t, student.ReferredByStudentID)
	assert.Equal(t, "ref-1", *student.ReferredByStudentID)
	// Not enrolled yet: no code, no credit.
	assert.Empty(t, engine.ensuredFor)
	assert.Empty(t, engine.creditedFor)
}

func TestStudentCreateUnknownCodeIsSoftMiss(t *testing.T) {
	repo := newMockStudentRepo()
	engine := &mockReferralEngine{}
	svc := newTestStudentService(repo, engine, nil)

	req := validCreateRequest()
	req.ReferralCode = "UNKNOWN1"
	student, err := svc.Create(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.Nil(t, student.ReferredByStudentID)
}

func TestStudentCreateEnrolledFiresEngine(t *testing.T) {
	repo := newMockStudentRepo()
	engine := &mockReferralEngine{resolved: map[string]*models.Student{"AY5F2D7A": {ID: "ref-1"}}}
	svc := newTestStudentService(repo, engine, nil)

	req := validCreateRequest()
	req.Status = models.StatusEnrolled
	req.ReferralCode = "AY5F2D7A"
	student, err := svc.Create(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, []string{student.ID}, engine.ensuredFor)
	assert.Equal(t, []string{student.ID}, engine.creditedFor)
}

func TestStudentCreateDefaultsLanguages(t *testing.T) {
	repo := newMockStudentRepo()
	svc := newTestStudentService(repo, &mockReferralEngine{}, nil)

	student, err := svc.Create(context.Background(), "user-1", validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"İngilizce"}, []string(student.Languages))
}

func TestStudentCreateValidation(t *testing.T) {
	svc := newTestStudentService(newMockStudentRepo(), &mockReferralEngine{}, nil)

	req := validCreateRequest()
	req.Status = "vip"
	_, err := svc.Create(context.Background(), "user-1", req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestStudentUpdateEnrollTransitionFiresEngine(t *testing.T) {
	existing := &models.Student{ID: "s1", Status: models.StatusInterested, Name: "Ayşe", Surname: "Yılmaz"}
	repo := newMockStudentRepo(existing)
	engine := &mockReferralEngine{}
	svc := newTestStudentService(repo, engine, nil)

	status := models.StatusEnrolled
	student, err := svc.Update(context.Background(), "s1", "user-2", UpdateStudentRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnrolled, student.Status)
	assert.Equal(t, []string{"s1"}, engine.ensuredFor)
	require.Len(t, engine.previousSeen, 1)
	assert.Equal(t, models.StatusInterested, engine.previousSeen[0])
}

func TestStudentUpdateWithoutEnrollSkipsEngine(t *testing.T) {
	existing := &models.Student{ID: "s1", Status: models.StatusNew}
	repo := newMockStudentRepo(existing)
	engine := &mockReferralEngine{}
	svc := newTestStudentService(repo, engine, nil)

	notes := "aradı, düşünecek"
	_, err := svc.Update(context.Background(), "s1", "user-2", UpdateStudentRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Empty(t, engine.ensuredFor)
	assert.Empty(t, engine.creditedFor)
	assert.Equal(t, notes, repo.students["s1"].Notes)
}

func TestStudentUpdateEnrolledStaysEnrolledPassesPreviousStatus(t *testing.T) {
	existing := &models.Student{ID: "s1", Status: models.StatusEnrolled}
	repo := newMockStudentRepo(existing)
	engine := &mockReferralEngine{}
	svc := newTestStudentService(repo, engine, nil)

	phone := "05551112244"
	_, err := svc.Update(context.Background(), "s1", "user-2", UpdateStudentRequest{Phone: &phone})
	require.NoError(t, err)
	// The engine is still consulted; its own transition guard decides.
	require.Len(t, engine.previousSeen, 1)
	assert.Equal(t, models.StatusEnrolled, engine.previousSeen[0])
}

func TestStudentListResolvesFollowUpWindow(t *testing.T) {
	repo := newMockStudentRepo()
	svc := newTestStudentService(repo, &mockReferralEngine{}, nil)

	_, _, err := svc.List(context.Background(), models.StudentFilter{FollowUpBucket: models.FollowUpThisWeek})
	require.NoError(t, err)
	assert.Nil(t, repo.lastFilter.FollowUpBefore)
	assert.NotNil(t, repo.lastFilter.FollowUpFrom)
	assert.NotNil(t, repo.lastFilter.FollowUpUntil)

	_, _, err = svc.List(context.Background(), models.StudentFilter{FollowUpBucket: models.FollowUpOverdue})
	require.NoError(t, err)
	assert.NotNil(t, repo.lastFilter.FollowUpBefore)
	assert.Nil(t, repo.lastFilter.FollowUpFrom)
}

func TestStudentGetAssemblesDetail(t *testing.T) {
	existing := &models.Student{ID: "s1", ReferralEarnings: 2000}
	repo := newMockStudentRepo(existing)
	repo.referrer = &models.ReferrerInfo{ID: "ref-1", Name: "Mehmet", Surname: "Kaya", ReferralCode: "MK123456"}
	payments := newMockPaymentRepo()
	payments.payments[models.PaymentKindReferral] = []models.Payment{{StudentID: "s1", Amount: 500}, {StudentID: "s1", Amount: 300}}
	payments.payments[models.PaymentKindBonus] = []models.Payment{{StudentID: "s1", Amount: 1000}}
	svc := newTestStudentService(repo, &mockReferralEngine{}, payments)

	detail, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(800), detail.TotalReferralEarningsPaid)
	assert.Equal(t, int64(1000), detail.TotalReferredBonusPaid)
	require.NotNil(t, detail.Referrer)
	assert.Equal(t, "ref-1", detail.Referrer.ID)
}

func TestStudentDeleteUnknown(t *testing.T) {
	svc := newTestStudentService(newMockStudentRepo(), &mockReferralEngine{}, nil)

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
