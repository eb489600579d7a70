package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linguakurs/crm-api/internal/models"
	"github.com/linguakurs/crm-api/internal/service"
	appErrors "github.com/linguakurs/crm-api/pkg/errors"
	"github.com/linguakurs/crm-api/pkg/response"
)

// ReferralHandler exposes the referral ledger endpoints: payments, balances,
// referred-student listings and code lookup.
type ReferralHandler struct {
	referrals *service.ReferralService
}

// NewReferralHandler constructs ReferralHandler.
func NewReferralHandler(referrals *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

func paymentKind(c *gin.Context) (models.PaymentKind, bool) {
	kind := models.PaymentKind(c.Param("kind"))
	if !kind.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown payment kind"))
		return "", false
	}
	return kind, true
}

// ListPayments godoc
// @Summary List a student's ledger payments
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param kind path string true "Payment kind: referral or bonus"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/payments/{kind} [get]
func (h *ReferralHandler) ListPayments(c *gin.Context) {
	kind, ok := paymentKind(c)
	if !ok {
		return
	}
	payments, err := h.referrals.ListPayments(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// AddPayment godoc
// @Summary Record a ledger payment for a student
// @Tags Referrals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param kind path string true "Payment kind: referral or bonus"
// @Param payload body service.AddPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/payments/{kind} [post]
func (h *ReferralHandler) AddPayment(c *gin.Context) {
	kind, ok := paymentKind(c)
	if !ok {
		return
	}
	var req service.AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.referrals.AddPayment(c.Request.Context(), kind, c.Param("id"), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Balance godoc
// @Summary Get a student's reconciled ledger balance
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param kind path string true "Payment kind: referral or bonus"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/balance/{kind} [get]
func (h *ReferralHandler) Balance(c *gin.Context) {
	kind, ok := paymentKind(c)
	if !ok {
		return
	}
	balance, err := h.referrals.Balance(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// ReferredStudents godoc
// @Summary List the students a referrer brought in
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Referrer student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/referrals [get]
func (h *ReferralHandler) ReferredStudents(c *gin.Context) {
	students, err := h.referrals.ReferredStudents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// LookupCode godoc
// @Summary Resolve a referral code to its owner
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Param code path string true "Referral code"
// @Success 200 {object} response.Envelope
// @Router /referral-codes/{code} [get]
func (h *ReferralHandler) LookupCode(c *gin.Context) {
	student, err := h.referrals.ResolveCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if student == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "referral code not found"))
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}
