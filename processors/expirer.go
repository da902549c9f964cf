package processors

import (
	"context"
	"log/slog"
	"time"

	"github.com/brpix/pix-processor/models"
	"github.com/brpix/pix-processor/utils"
)

type ExpiryService struct {
	store    models.ChargeStorer
	events   *ChargeEventService
	renderer ArtifactRenderer
	logger   *slog.Logger
}

func NewExpiryService(store models.ChargeStorer, events *ChargeEventService, renderer ArtifactRenderer, logger *slog.Logger) *ExpiryService {
	return &ExpiryService{
		store:    store,
		events:   events,
		renderer: renderer,
		logger:   logger.With("component", "expirer"),
	}
}

// RunExpirySweep moves every pending charge past its deadline to expired.
// Each transition is conditional, so a charge matched to a payment between
// the query and the update silently stays paid. No webhook is sent.
func (s *ExpiryService) RunExpirySweep(ctx context.Context) {
	now := utils.ToCanonical(time.Now())

	chargesResult := s.store.FetchExpiredPending(now)
	if chargesResult.Failure() {
		s.logger.Error("error querying expired charges", slog.String("error", chargesResult.ErrorMsg()))
		utils.CaptureErrorResult(chargesResult)
		return
	}

	expired := 0
	for _, charge := range chargesResult.Value() {
		if ctx.Err() != nil {
			return
		}

		updateResult := s.store.ConditionalUpdateStatus(
			charge.ID,
			models.ChargeStatusPending,
			models.ChargeStatusExpired,
			nil,
		)
		if updateResult.Failure() {
			s.logger.Error("error transitioning charge to expired",
				slog.String("charge_id", charge.ID),
				slog.String("error", updateResult.ErrorMsg()),
			)
			utils.CaptureErrorResult(updateResult)
			continue
		}
		if !updateResult.Value() {
			// The inbox sweep got there first; the charge is paid.
			continue
		}

		charge.Status = models.ChargeStatusExpired
		s.renderer.Remove(charge.ArtifactPath)
		s.events.Publish(ctx, models.ChargeEventExpired, &charge, now)
		expired++
	}

	if expired > 0 {
		s.logger.Info("charges expired", slog.Int("count", expired))
	}
}
