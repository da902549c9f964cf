package processors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brpix/pix-processor/models"
	"github.com/brpix/pix-processor/pixcode"
	"github.com/brpix/pix-processor/utils"
)

var ErrInvalidAmount = errors.New("amount must be a positive number")

const txidLength = 25

// ArtifactRenderer is the issuer's and the sweeps' view of the QR store.
type ArtifactRenderer interface {
	Render(code string, ownerID string, logo []byte) (string, error)
	FetchLogo(url string) ([]byte, error)
	Remove(filename string)
}

// LogoInput carries an optional logo, either inline or by reference.
type LogoInput struct {
	Data []byte
	URL  string
}

type IssuerConfig struct {
	MerchantKey  string
	MerchantName string
	MerchantCity string
	ChargeTTL    time.Duration
}

type ChargeIssuer struct {
	store         models.ChargeStorer
	disambiguator *AmountDisambiguator
	renderer      ArtifactRenderer
	events        *ChargeEventService
	config        IssuerConfig
	logger        *slog.Logger
}

func NewChargeIssuer(
	store models.ChargeStorer,
	disambiguator *AmountDisambiguator,
	renderer ArtifactRenderer,
	events *ChargeEventService,
	config IssuerConfig,
	logger *slog.Logger,
) *ChargeIssuer {
	return &ChargeIssuer{
		store:         store,
		disambiguator: disambiguator,
		renderer:      renderer,
		events:        events,
		config:        config,
		logger:        logger.With("component", "issuer"),
	}
}

// Issue creates a pending charge: disambiguated amount, encoded payment code,
// rendered QR artifact, deadline. Nothing is persisted when rendering fails.
func (i *ChargeIssuer) Issue(ctx context.Context, ownerID string, amount decimal.Decimal, logo *LogoInput) utils.Result[*models.Charge] {
	if !amount.IsPositive() {
		return utils.FailedResult[*models.Charge](ErrInvalidAmount).
			AddErrorDetails("invalid_amount", "requested amount must be strictly positive").
			NonRetryable().
			NonCapturable()
	}

	settled := i.disambiguator.Disambiguate(amount)

	// No uniqueness check against the store: at 25 hex chars the collision
	// probability is negligible, an accepted risk.
	txid := strings.ReplaceAll(uuid.NewString(), "-", "")[:txidLength]

	code := pixcode.Encode(pixcode.Options{
		Key:          i.config.MerchantKey,
		MerchantName: i.config.MerchantName,
		MerchantCity: i.config.MerchantCity,
		Amount:       settled,
		TxID:         txid,
		Description:  fmt.Sprintf("Pagamento User ID: %s", ownerID),
	})

	logoBytes, err := i.resolveLogo(logo)
	if err != nil {
		return failedRender[*models.Charge](err)
	}

	filename, err := i.renderer.Render(code, ownerID, logoBytes)
	if err != nil {
		return failedRender[*models.Charge](err)
	}

	now := utils.ToCanonical(time.Now())

	charge := &models.Charge{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		RequestedAmount: amount.Round(2),
		SettledAmount:   settled,
		PaymentCode:     code,
		ArtifactPath:    filename,
		Status:          models.ChargeStatusPending,
		Deadline:        now.Add(i.config.ChargeTTL),
	}

	insertResult := i.store.InsertCharge(charge)
	if insertResult.Failure() {
		i.renderer.Remove(filename)
		return utils.FailedResult[*models.Charge](insertResult.Error()).
			AddErrorDetails("store_unavailable", "error persisting charge")
	}

	i.logger.Info("charge issued",
		slog.String("charge_id", charge.ID),
		slog.String("owner_id", ownerID),
		slog.String("settled_amount", settled.StringFixed(2)),
	)

	i.events.Publish(ctx, models.ChargeEventIssued, charge, now)

	return utils.SuccessResult(charge)
}

func (i *ChargeIssuer) resolveLogo(logo *LogoInput) ([]byte, error) {
	if logo == nil {
		return nil, nil
	}

	if len(logo.Data) > 0 {
		return logo.Data, nil
	}

	if logo.URL != "" {
		return i.renderer.FetchLogo(logo.URL)
	}

	return nil, nil
}

func failedRender[T any](err error) utils.Result[T] {
	return utils.FailedResult[T](err).
		AddErrorDetails("artifact_render_failed", "error rendering payment artifact").
		NonRetryable()
}
