package models

import (
	"time"

	"github.com/lib/pq"
)

// Student status lifecycle.
const (
	StatusNew        = "new"
	StatusInterested = "interested"
	StatusEnrolled   = "enrolled"
	StatusCancelled  = "cancelled"
)

// Contact channel used to reach the student.
const (
	ContactPhone      = "telefon"
	ContactFaceToFace = "yuz-yuze"
)

// Education level of the prospective student.
const (
	EducationPrimary    = "ilkogretim"
	EducationHighSchool = "lise"
	EducationUniversity = "universite"
	EducationAdult      = "yetiskin"
)

// Registration type.
const (
	RegistrationNew     = "yeni-kayit"
	RegistrationRenewal = "kayit-yenileme"
)

// FollowUpBucket classifies a pending follow-up date relative to the current week.
type FollowUpBucket string

const (
	FollowUpOverdue  FollowUpBucket = "overdue"
	FollowUpThisWeek FollowUpBucket = "this-week"
	FollowUpNextWeek FollowUpBucket = "next-week"
)

// Student represents a prospective or enrolled course customer.
type Student struct {
	ID                   string         `db:"id" json:"id"`
	UserID               string         `db:"user_id" json:"user_id"`
	Name                 string         `db:"name" json:"name"`
	Surname              string         `db:"surname" json:"surname"`
	Phone                string         `db:"phone" json:"phone"`
	Email                string         `db:"email" json:"email"`
	ContactType          string         `db:"contact_type" json:"contact_type"`
	RegistrationType     string         `db:"registration_type" json:"registration_type"`
	Status               string         `db:"status" json:"status"`
	EducationLevel       string         `db:"education_level" json:"education_level"`
	Languages            pq.StringArray `db:"languages" json:"languages"`
	InterestedLevels     pq.StringArray `db:"interested_levels" json:"interested_levels"`
	PlacementTestLevel   *string        `db:"placement_test_level" json:"placement_test_level,omitempty"`
	PlacementTestTeacher string         `db:"placement_test_teacher" json:"placement_test_teacher,omitempty"`
	Notes                string         `db:"notes" json:"notes"`
	FollowUpDate         *time.Time     `db:"follow_up_date" json:"follow_up_date,omitempty"`
	LastContact          *time.Time     `db:"last_contact" json:"last_contact,omitempty"`
	ReferralCode         *string        `db:"referral_code" json:"referral_code,omitempty"`
	ReferredByStudentID  *string        `db:"referred_by_student_id" json:"referred_by_student_id,omitempty"`
	ReferralEarnings     int64          `db:"referral_earnings" json:"referral_earnings"`
	ReferredStudentBonus int64          `db:"referred_student_bonus" json:"referred_student_bonus"`
	ReferralCreditedAt   *time.Time     `db:"referral_credited_at" json:"-"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// ReferrerInfo is the short profile of the student who owns the referral code
// another student used at registration.
type ReferrerInfo struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Surname      string `db:"surname" json:"surname"`
	ReferralCode string `db:"referral_code" json:"referral_code"`
}

// StudentDetail is a student with its owned collections and ledger summary.
type StudentDetail struct {
	Student
	Interviews                []Interview   `json:"interviews"`
	PriceQuotes               []PriceQuote  `json:"price_quotes"`
	ReferralPayments          []Payment     `json:"referral_payments"`
	BonusPayments             []Payment     `json:"bonus_payments"`
	TotalReferralEarningsPaid int64         `json:"total_referral_earnings_paid"`
	TotalReferredBonusPaid    int64         `json:"total_referred_bonus_paid"`
	Referrer                  *ReferrerInfo `json:"referrer,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
// All non-empty predicates are AND-composed.
type StudentFilter struct {
	Search             string
	Status             string
	EducationLevel     string
	ContactType        string
	RegistrationType   string
	InterestedLevel    string
	PlacementTestLevel string
	FollowUpBucket     FollowUpBucket
	Page               int
	PageSize           int

	// Resolved follow-up window. Set by the service from FollowUpBucket and
	// "today"; never bound from the request directly.
	FollowUpBefore *time.Time
	FollowUpFrom   *time.Time
	FollowUpUntil  *time.Time
}
