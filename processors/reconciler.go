package processors

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	tracer "github.com/brpix/pix-processor/config"
	"github.com/brpix/pix-processor/config/gmail"
	"github.com/brpix/pix-processor/models"
	"github.com/brpix/pix-processor/parser"
	"github.com/brpix/pix-processor/utils"
)

// matchTolerance is the symmetric band around a parsed amount inside which a
// pending charge counts as a candidate. Must stay at least as wide as the
// largest disambiguation offset.
var matchTolerance = decimal.New(3, -2)

const mailRetentionDays = 2

type ReconciliationService struct {
	store    models.ChargeStorer
	mail     gmail.MailSource
	notifier Notifier
	events   *ChargeEventService
	renderer ArtifactRenderer
	logger   *slog.Logger
}

func NewReconciliationService(
	store models.ChargeStorer,
	mail gmail.MailSource,
	notifier Notifier,
	events *ChargeEventService,
	renderer ArtifactRenderer,
	logger *slog.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		store:    store,
		mail:     mail,
		notifier: notifier,
		events:   events,
		renderer: renderer,
		logger:   logger.With("component", "reconciler"),
	}
}

// RunInboxSweep processes unread bank notifications strictly in listing
// order, one at a time. A mail source failure aborts the run; the next tick
// starts over.
func (s *ReconciliationService) RunInboxSweep(ctx context.Context) {
	span := tracer.GetTracerSpan(ctx, "pix_processor", "Reconciliation.InboxSweep")
	defer span.End()

	idsResult := s.mail.ListUnread(ctx)
	if idsResult.Failure() {
		s.logger.Error("error listing unread messages", slog.String("error", idsResult.ErrorMsg()))
		utils.CaptureErrorResult(idsResult)
		return
	}

	for _, id := range idsResult.Value() {
		if ctx.Err() != nil {
			return
		}
		s.processMessage(ctx, id)
	}
}

func (s *ReconciliationService) processMessage(ctx context.Context, id string) {
	bodyResult := s.mail.GetBody(ctx, id)
	if bodyResult.Failure() {
		s.logger.Error("error fetching message body",
			slog.String("message_id", id),
			slog.String("error", bodyResult.ErrorMsg()),
		)
		utils.CaptureErrorResult(bodyResult)
		return
	}

	notice, ok := parser.Parse(bodyResult.Value(), time.Now())
	if !ok {
		// Unparseable messages stay out of future sweeps but keep their
		// failed tag for operators to inspect.
		if err := s.mail.TagFailed(ctx, id); err != nil {
			s.logger.Error("error tagging unparseable message",
				slog.String("message_id", id),
				slog.String("error", err.Error()),
			)
			utils.CaptureError(err)
		}
		return
	}

	low := notice.Amount.Sub(matchTolerance)
	high := notice.Amount.Add(matchTolerance)

	chargesResult := s.store.FetchPendingInRange(low, high)
	if chargesResult.Failure() {
		s.logger.Error("error querying pending charges", slog.String("error", chargesResult.ErrorMsg()))
		utils.CaptureErrorResult(chargesResult)
		return
	}

	charges := chargesResult.Value()
	if len(charges) == 0 {
		// The matching charge may be issued moments from now; the message
		// stays unread so the next sweep reconsiders it.
		return
	}

	charge := selectMatch(charges)

	if err := s.mail.ClearUnread(ctx, id); err != nil {
		s.logger.Error("error marking message as read",
			slog.String("message_id", id),
			slog.String("error", err.Error()),
		)
		utils.CaptureError(err)
		return
	}

	settledAt := notice.TransferTime
	updateResult := s.store.ConditionalUpdateStatus(
		charge.ID,
		models.ChargeStatusPending,
		models.ChargeStatusPaid,
		map[string]any{"settled_at": settledAt},
	)
	if updateResult.Failure() {
		s.logger.Error("error transitioning charge to paid",
			slog.String("charge_id", charge.ID),
			slog.String("error", updateResult.ErrorMsg()),
		)
		utils.CaptureErrorResult(updateResult)
		return
	}
	if !updateResult.Value() {
		// Lost the race against the expiry sweep. Normal outcome.
		s.logger.Info("charge transition lost", slog.String("charge_id", charge.ID))
		return
	}

	charge.Status = models.ChargeStatusPaid
	charge.SettledAt = sql.NullTime{Time: settledAt, Valid: true}

	s.logger.Info("charge settled",
		slog.String("charge_id", charge.ID),
		slog.String("amount", notice.Amount.StringFixed(2)),
	)

	s.renderer.Remove(charge.ArtifactPath)
	s.events.Publish(ctx, models.ChargeEventPaid, &charge, settledAt)

	notifyResult := s.notifier.Notify(ctx, &charge)
	if notifyResult.Failure() {
		// The message has been consumed and the charge stays paid with
		// notified=false; delivery is not re-attempted from this email.
		s.logger.Error("webhook delivery failed",
			slog.String("charge_id", charge.ID),
			slog.String("error", notifyResult.ErrorMsg()),
		)
		utils.CaptureErrorResult(notifyResult)
		return
	}

	if err := s.mail.ArchiveOrDelete(ctx, id); err != nil {
		s.logger.Error("error archiving processed message",
			slog.String("message_id", id),
			slog.String("error", err.Error()),
		)
		utils.CaptureError(err)
	}
}

// selectMatch is the tie-break when several pending charges fall inside the
// tolerance band: the first row in store query order (oldest created).
// Deliberately not closest-amount; see DESIGN.md.
func selectMatch(charges []models.Charge) models.Charge {
	return charges[0]
}

// RunRetentionSweep trashes old notification messages regardless of read
// state, bounding mailbox growth.
func (s *ReconciliationService) RunRetentionSweep(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -mailRetentionDays)

	idsResult := s.mail.ListBefore(ctx, cutoff)
	if idsResult.Failure() {
		s.logger.Error("error listing old messages", slog.String("error", idsResult.ErrorMsg()))
		utils.CaptureErrorResult(idsResult)
		return
	}

	deleted := 0
	for _, id := range idsResult.Value() {
		if ctx.Err() != nil {
			return
		}

		if err := s.mail.ArchiveOrDelete(ctx, id); err != nil {
			s.logger.Error("error deleting old message",
				slog.String("message_id", id),
				slog.String("error", err.Error()),
			)
			utils.CaptureError(err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info("old messages cleaned up", slog.Int("deleted", deleted))
	}
}
