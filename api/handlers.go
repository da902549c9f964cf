package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/brpix/pix-processor/models"
	"github.com/brpix/pix-processor/processors"
	"github.com/brpix/pix-processor/utils"
)

// ChargeIssuing lets the handler be tested against a stub issuer.
type ChargeIssuing interface {
	Issue(ctx context.Context, ownerID string, amount decimal.Decimal, logo *processors.LogoInput) utils.Result[*models.Charge]
}

type PaymentHandler struct {
	issuer ChargeIssuing
	store  models.ChargeStorer
}

func NewPaymentHandler(issuer ChargeIssuing, store models.ChargeStorer) *PaymentHandler {
	return &PaymentHandler{
		issuer: issuer,
		store:  store,
	}
}

type createPaymentRequest struct {
	UserID     string  `json:"user_id" binding:"required"`
	Amount     float64 `json:"amount" binding:"required"`
	LogoURL    string  `json:"logo_url"`
	LogoBase64 string  `json:"logo_base64"`
}

func (h *PaymentHandler) CreatePixPayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "user_id and amount are required")
		return
	}

	amount := decimal.NewFromFloat(req.Amount)
	if !amount.IsPositive() {
		errorResponse(c, http.StatusBadRequest, "amount must be a positive number")
		return
	}

	logo, err := resolveLogoInput(req)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "logo_base64 is not valid base64")
		return
	}

	result := h.issuer.Issue(c.Request.Context(), req.UserID, amount, logo)
	if result.Failure() {
		if result.Error() == processors.ErrInvalidAmount {
			errorResponse(c, http.StatusBadRequest, result.ErrorMsg())
			return
		}

		errorResponse(c, http.StatusInternalServerError, "Failed to create Pix payment")
		return
	}

	charge := result.Value()

	successResponse(c, http.StatusCreated, gin.H{
		"payment_id":        charge.ID,
		"pix_code":          charge.PaymentCode,
		"qr_code_image_url": artifactURL(c, charge.ArtifactPath),
		"expires_at":        charge.Deadline,
	})
}

func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	paymentID := c.Query("payment_id")
	if paymentID == "" {
		errorResponse(c, http.StatusBadRequest, "payment_id is required")
		return
	}

	result := h.store.FetchCharge(paymentID)
	if result.Failure() {
		if !result.IsRetryable() {
			errorResponse(c, http.StatusNotFound, "Payment not found")
			return
		}

		errorResponse(c, http.StatusInternalServerError, "Failed to get payment status")
		return
	}

	charge := result.Value()

	var paymentDate any
	if charge.SettledAt.Valid {
		paymentDate = charge.SettledAt.Time
	}

	successResponse(c, http.StatusOK, gin.H{
		"payment_id":   charge.ID,
		"status":       charge.Status,
		"amount":       charge.SettledAmount,
		"created_at":   charge.CreatedAt,
		"expires_at":   charge.Deadline,
		"payment_date": paymentDate,
	})
}

func resolveLogoInput(req createPaymentRequest) (*processors.LogoInput, error) {
	if req.LogoBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.LogoBase64)
		if err != nil {
			return nil, err
		}
		return &processors.LogoInput{Data: data}, nil
	}

	if req.LogoURL != "" {
		return &processors.LogoInput{URL: req.LogoURL}, nil
	}

	return nil, nil
}

func artifactURL(c *gin.Context, filename string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s/qrcodes/%s", scheme, c.Request.Host, filename)
}

func successResponse(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}
