package models

import "time"

// PaymentKind selects which side of the referral ledger a payment settles.
type PaymentKind string

const (
	// PaymentKindReferral settles earnings owed to a referrer.
	PaymentKindReferral PaymentKind = "referral"
	// PaymentKindBonus settles the bonus owed to a referred student.
	PaymentKindBonus PaymentKind = "bonus"
)

// Valid reports whether the kind is one of the two ledger sides.
func (k PaymentKind) Valid() bool {
	return k == PaymentKindReferral || k == PaymentKindBonus
}

// Payment is an append-only ledger entry recording a partial or full
// settlement of referral earnings or a referred-student bonus.
type Payment struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Amount    int64     `db:"amount" json:"amount"`
	PaidAt    time.Time `db:"paid_at" json:"paid_at"`
	UserID    string    `db:"user_id" json:"user_id"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LedgerBalance summarises one ledger side for a student.
type LedgerBalance struct {
	Kind        PaymentKind `json:"kind"`
	Earned      int64       `json:"earned"`
	Paid        int64       `json:"paid"`
	Outstanding int64       `json:"outstanding"`
}
