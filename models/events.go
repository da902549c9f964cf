package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ChargeEventIssued  = "charge.issued"
	ChargeEventPaid    = "charge.paid"
	ChargeEventExpired = "charge.expired"
)

// ChargeLifecycleEvent is the record published to the lifecycle topic on
// every status change. Consumers downstream (ledger, analytics) key on
// ChargeID.
type ChargeLifecycleEvent struct {
	Event         string          `json:"event"`
	ChargeID      string          `json:"charge_id"`
	OwnerID       string          `json:"owner_id"`
	SettledAmount decimal.Decimal `json:"settled_amount"`
	Status        ChargeStatus    `json:"status"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
