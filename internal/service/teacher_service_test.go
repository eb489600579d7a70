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

type mockTeacherRepo struct {
	teachers []models.Teacher
	toggled  map[string]bool
}

func (m *mockTeacherRepo) List(ctx context.Context, activeOnly bool) ([]models.Teacher, error) {
	if !activeOnly {
		return m.teachers, nil
	}
	var out []models.Teacher
	for _, teacher := range m.teachers {
		if teacher.IsActive {
			out = append(out, teacher)
		}
	}
	return out, nil
}

func (m *mockTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	teacher.ID = "t-generated"
	m.teachers = append(m.teachers, *teacher)
	return nil
}

func (m *mockTeacherRepo) SetActive(ctx context.Context, id string, active bool) error {
	if m.toggled == nil {
		m.toggled = make(map[string]bool)
	}
	m.toggled[id] = active
	return nil
}

func TestTeacherCreateDefaultsActive(t *testing.T) {
	repo := &mockTeacherRepo{}
	svc := NewTeacherService(repo, validator.New(), zap.NewNop())

	teacher, err := svc.Create(context.Background(), "user-1", CreateTeacherRequest{Name: "Zeynep Hoca"})
	require.NoError(t, err)
	assert.True(t, teacher.IsActive)
	assert.Equal(t, "user-1", teacher.UserID)
}

func TestTeacherCreateRequiresName(t *testing.T) {
	svc := NewTeacherService(&mockTeacherRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "user-1", CreateTeacherRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestTeacherListActiveOnly(t *testing.T) {
	repo := &mockTeacherRepo{teachers: []models.Teacher{
		{ID: "t1", Name: "Zeynep Hoca", IsActive: true},
		{ID: "t2", Name: "Murat Hoca", IsActive: false},
	}}
	svc := NewTeacherService(repo, validator.New(), zap.NewNop())

	all, err := svc.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "t1", active[0].ID)
}

func TestTeacherSetActive(t *testing.T) {
	repo := &mockTeacherRepo{}
	svc := NewTeacherService(repo, validator.New(), zap.NewNop())

	require.NoError(t, svc.SetActive(context.Background(), "t1", false))
	assert.Equal(t, map[string]bool{"t1": false}, repo.toggled)
}
