package models

import "time"

// Payment types for price quotes.
const (
	PaymentCash        = "pesin"
	PaymentInstallment = "taksit"
)

// PriceQuote is a costing proposal owned by one student. Quotes are immutable
// once created.
type PriceQuote struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id"`
	StudentID         string    `db:"student_id" json:"student_id"`
	CourseLevel       string    `db:"course_level" json:"course_level"`
	CourseDuration    string    `db:"course_duration" json:"course_duration"`
	TotalPrice        float64   `db:"total_price" json:"total_price"`
	CashPrice         *float64  `db:"cash_price" json:"cash_price,omitempty"`
	InstallmentPrice  *float64  `db:"installment_price" json:"installment_price,omitempty"`
	PaymentType       string    `db:"payment_type" json:"payment_type"`
	InstallmentCount  *int      `db:"installment_count" json:"installment_count,omitempty"`
	InstallmentAmount *float64  `db:"installment_amount" json:"installment_amount,omitempty"`
	Discount          float64   `db:"discount" json:"discount"`
	FinalPrice        float64   `db:"final_price" json:"final_price"`
	Notes             string    `db:"notes" json:"notes"`
	IsAccepted        bool      `db:"is_accepted" json:"is_accepted"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
