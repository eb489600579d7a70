package models

// ReportData aggregates interview and referral-ledger figures over a closed
// date range.
type ReportData struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	TotalInterviews      int `json:"total_interviews"`
	PhoneInterviews      int `json:"phone_interviews"`
	FaceToFaceInterviews int `json:"face_to_face_interviews"`
	// EnrolledInterviews counts interviews whose free-text outcome matches the
	// enrollment keyword list. This is a heuristic carried over from the
	// recorded data: an outcome containing a keyword incidentally is
	// misclassified. Accepted approximation.
	EnrolledInterviews int `json:"enrolled_interviews"`

	InterviewsByDate   map[string]int `json:"interviews_by_date"`
	InterviewsByUser   map[string]int `json:"interviews_by_user"`
	EnrollmentsByUser  map[string]int `json:"enrollments_by_user"`
	ReferredStudents   int            `json:"referred_students"`

	TotalPotentialReferralEarnings int64 `json:"total_potential_referral_earnings"`
	TotalPotentialBonusPayments    int64 `json:"total_potential_bonus_payments"`
	TotalReferralPaymentsMade      int64 `json:"total_referral_payments_made"`
	TotalBonusPaymentsMade         int64 `json:"total_bonus_payments_made"`
	UnpaidReferralEarnings         int64 `json:"unpaid_referral_earnings"`
	UnpaidBonusPayments            int64 `json:"unpaid_bonus_payments"`
}
