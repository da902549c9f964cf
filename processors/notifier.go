package processors

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brpix/pix-processor/models"
	"github.com/brpix/pix-processor/utils"
)

const (
	webhookEventPaymentConfirmed = "payment.confirmed"
	webhookSignatureHeader       = "x-webhook-secret"
	webhookTimeout               = 10 * time.Second
)

type Notifier interface {
	Notify(ctx context.Context, charge *models.Charge) utils.Result[bool]
}

// Amount goes out as a JSON number, not the quoted string decimal marshals
// to; consumers parse it as a float.
type webhookPayload struct {
	Event       string              `json:"event"`
	PaymentID   string              `json:"payment_id"`
	UserID      string              `json:"user_id"`
	Amount      float64             `json:"amount"`
	PaymentDate *time.Time          `json:"payment_date"`
	Status      models.ChargeStatus `json:"status"`
}

type WebhookNotifier struct {
	endpoint   string
	secret     string
	store      models.ChargeStorer
	httpClient *http.Client
	logger     *slog.Logger
}

func NewWebhookNotifier(endpoint string, secret string, store models.ChargeStorer, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		endpoint:   endpoint,
		secret:     secret,
		store:      store,
		httpClient: &http.Client{Timeout: webhookTimeout},
		logger:     logger.With("component", "notifier"),
	}
}

// Notify makes at most one delivery attempt for the charge's paid transition.
// A true value means the webhook went out on this call; false means it was
// skipped (no endpoint, or already delivered). Delivery failure never touches
// the payment state.
func (n *WebhookNotifier) Notify(ctx context.Context, charge *models.Charge) utils.Result[bool] {
	if n.endpoint == "" {
		n.logger.Info("webhook endpoint not configured, skipping notification",
			slog.String("charge_id", charge.ID))
		return utils.SuccessResult(false)
	}

	if charge.Notified {
		return utils.SuccessResult(false)
	}

	payload := webhookPayload{
		Event:     webhookEventPaymentConfirmed,
		PaymentID: charge.ID,
		UserID:    charge.OwnerID,
		Amount:    charge.SettledAmount.InexactFloat64(),
		Status:    charge.Status,
	}
	if charge.SettledAt.Valid {
		settledAt := charge.SettledAt.Time
		payload.PaymentDate = &settledAt
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failedNotification(err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return failedNotification(err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set(webhookSignatureHeader, n.sign(body))

	response, err := n.httpClient.Do(request)
	if err != nil {
		return failedNotification(err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return failedNotification(fmt.Errorf("webhook endpoint returned status %d", response.StatusCode))
	}

	markResult := n.store.MarkNotified(charge.ID)
	if markResult.Failure() {
		return utils.FailedBoolResult(markResult.Error()).
			AddErrorDetails("store_unavailable", "webhook delivered but notified flag not persisted")
	}
	charge.Notified = true

	n.logger.Info("webhook delivered",
		slog.String("charge_id", charge.ID),
		slog.Int("status", response.StatusCode),
	)

	return utils.SuccessResult(true)
}

func (n *WebhookNotifier) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(n.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func failedNotification(err error) utils.Result[bool] {
	return utils.FailedBoolResult(err).
		AddErrorDetails("notification_failed", "error delivering payment webhook")
}
