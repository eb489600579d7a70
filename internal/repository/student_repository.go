package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/linguakurs/crm-api/internal/models"
)

const studentColumns = `id, user_id, name, surname, phone, email, contact_type, registration_type, status,
        education_level, languages, interested_levels, placement_test_level, placement_test_teacher, notes,
        follow_up_date, last_contact, referral_code, referred_by_student_id, referral_earnings,
        referred_student_bonus, referral_credited_at, created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters, newest first.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	next := func() int { return len(args) + 1 }

	if filter.Search != "" {
		needle := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(surname) LIKE $%d OR phone LIKE $%d)", next(), next(), next()))
		args = append(args, needle)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", next()))
		args = append(args, filter.Status)
	}
	if filter.EducationLevel != "" {
		conditions = append(conditions, fmt.Sprintf("education_level = $%d", next()))
		args = append(args, filter.EducationLevel)
	}
	if filter.ContactType != "" {
		conditions = append(conditions, fmt.Sprintf("contact_type = $%d", next()))
		args = append(args, filter.ContactType)
	}
	if filter.RegistrationType != "" {
		conditions = append(conditions, fmt.Sprintf("registration_type = $%d", next()))
		args = append(args, filter.RegistrationType)
	}
	if filter.InterestedLevel != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(interested_levels)", next()))
		args = append(args, filter.InterestedLevel)
	}
	if filter.PlacementTestLevel != "" {
		conditions = append(conditions, fmt.Sprintf("placement_test_level = $%d", next()))
		args = append(args, filter.PlacementTestLevel)
	}
	if filter.FollowUpBefore != nil {
		conditions = append(conditions, fmt.Sprintf("follow_up_date IS NOT NULL AND follow_up_date < $%d", next()))
		args = append(args, *filter.FollowUpBefore)
	}
	if filter.FollowUpFrom != nil && filter.FollowUpUntil != nil {
		conditions = append(conditions, fmt.Sprintf("follow_up_date >= $%d AND follow_up_date <= $%d", next(), next()+1))
		args = append(args, *filter.FollowUpFrom, *filter.FollowUpUntil)
	}

	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		studentColumns, where, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM students WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByReferralCode resolves a referral code to its owning student.
func (r *StudentRepository) FindByReferralCode(ctx context.Context, code string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE referral_code = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, code); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByReferralCode reports whether any student already owns the code.
func (r *StudentRepository) ExistsByReferralCode(ctx context.Context, code string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM students WHERE referral_code = $1 LIMIT 1", code)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check referral code: %w", err)
	}
	return true, nil
}

// FindReferrerInfo returns the short profile of the referrer of a student, or
// nil when the student was not referred.
func (r *StudentRepository) FindReferrerInfo(ctx context.Context, studentID string) (*models.ReferrerInfo, error) {
	const query = `SELECT ref.id, ref.name, ref.surname, COALESCE(ref.referral_code, '') AS referral_code
        FROM students s JOIN students ref ON ref.id = s.referred_by_student_id
        WHERE s.id = $1`
	var info models.ReferrerInfo
	if err := r.db.GetContext(ctx, &info, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find referrer: %w", err)
	}
	return &info, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, user_id, name, surname, phone, email, contact_type, registration_type,
        status, education_level, languages, interested_levels, placement_test_level, placement_test_teacher,
        notes, follow_up_date, last_contact, referral_code, referred_by_student_id, referral_earnings,
        referred_student_bonus, created_at, updated_at)
        VALUES (:id, :user_id, :name, :surname, :phone, :email, :contact_type, :registration_type,
        :status, :education_level, :languages, :interested_levels, :placement_test_level, :placement_test_teacher,
        :notes, :follow_up_date, :last_contact, :referral_code, :referred_by_student_id, :referral_earnings,
        :referred_student_bonus, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student. The referral ledger columns are owned
// by the ledger engine and are deliberately not part of this statement.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET user_id = :user_id, name = :name, surname = :surname, phone = :phone,
        email = :email, contact_type = :contact_type, registration_type = :registration_type, status = :status,
        education_level = :education_level, languages = :languages, interested_levels = :interested_levels,
        placement_test_level = :placement_test_level, placement_test_teacher = :placement_test_teacher,
        notes = :notes, follow_up_date = :follow_up_date, last_contact = :last_contact, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes a student. Owned interviews, quotes and payments cascade at
// the database level.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

// SetReferralCode persists a freshly issued code. The null guard keeps the
// write idempotent: an existing code is never overwritten.
func (r *StudentRepository) SetReferralCode(ctx context.Context, id, code string) error {
	const query = `UPDATE students SET referral_code = $2, updated_at = $3 WHERE id = $1 AND referral_code IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, code, time.Now().UTC()); err != nil {
		return fmt.Errorf("set referral code: %w", err)
	}
	return nil
}

// CreditReferral applies the enrollment credit pair in one transaction:
// the referrer's earnings grow by amount and the referred student's bonus is
// set to amount. The referral_credited_at null guard keys the transaction by
// the referred student, so the pair lands at most once even when the
// transition re-fires concurrently. Returns false when the student was
// already credited.
func (r *StudentRepository) CreditReferral(ctx context.Context, referrerID, referredID string, amount int64) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin credit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE students SET referral_credited_at = $2, referred_student_bonus = $3, updated_at = $2
         WHERE id = $1 AND referral_credited_at IS NULL`,
		referredID, now, amount)
	if err != nil {
		return false, fmt.Errorf("mark referral credited: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("credit rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE students SET referral_earnings = referral_earnings + $2, updated_at = $3 WHERE id = $1`,
		referrerID, amount, now); err != nil {
		return false, fmt.Errorf("increment referral earnings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit credit tx: %w", err)
	}
	return true, nil
}

// ListReferredBy returns the students referred by the given referrer.
func (r *StudentRepository) ListReferredBy(ctx context.Context, referrerID string) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE referred_by_student_id = $1 ORDER BY created_at DESC", studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, referrerID); err != nil {
		return nil, fmt.Errorf("list referred students: %w", err)
	}
	return students, nil
}

// ListReferredInRange returns referred students created inside the range.
func (r *StudentRepository) ListReferredInRange(ctx context.Context, from, to time.Time) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students
        WHERE referred_by_student_id IS NOT NULL AND created_at >= $1 AND created_at <= $2
        ORDER BY created_at DESC`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, from, to); err != nil {
		return nil, fmt.Errorf("list referred in range: %w", err)
	}
	return students, nil
}

// CountEnrolledReferredInRange counts referred students who are enrolled and
// were created inside the range.
func (r *StudentRepository) CountEnrolledReferredInRange(ctx context.Context, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM students
        WHERE referred_by_student_id IS NOT NULL AND status = $1 AND created_at >= $2 AND created_at <= $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.StatusEnrolled, from, to); err != nil {
		return 0, fmt.Errorf("count enrolled referred: %w", err)
	}
	return count, nil
}
