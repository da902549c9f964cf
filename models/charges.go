package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/brpix/pix-processor/utils"
)

type ChargeStatus string

const (
	ChargeStatusPending ChargeStatus = "pending"
	ChargeStatusPaid    ChargeStatus = "paid"
	ChargeStatusExpired ChargeStatus = "expired"
)

// Charge is the central record: one payment request, tracked from issuance to
// settlement or expiry. Status only ever moves pending -> paid or
// pending -> expired; both transitions go through ConditionalUpdateStatus so
// concurrent sweeps cannot both win.
type Charge struct {
	ID              string          `gorm:"primaryKey" json:"id"`
	OwnerID         string          `gorm:"column:owner_id" json:"owner_id"`
	RequestedAmount decimal.Decimal `gorm:"type:numeric(10,2)" json:"requested_amount"`
	SettledAmount   decimal.Decimal `gorm:"type:numeric(10,2)" json:"settled_amount"`
	PaymentCode     string          `json:"payment_code"`
	ArtifactPath    string          `json:"artifact_path"`
	Status          ChargeStatus    `gorm:"default:pending" json:"status"`
	Deadline        time.Time       `json:"deadline"`
	SettledAt       sql.NullTime    `json:"settled_at"`
	Notified        bool            `gorm:"default:false" json:"notified"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Charge) TableName() string {
	return "charges"
}

// ChargeStorer is the store surface the processors are written against. The
// gorm-backed ApiStore is the production implementation; tests substitute an
// in-memory one.
type ChargeStorer interface {
	InsertCharge(charge *Charge) utils.Result[*Charge]
	FetchCharge(id string) utils.Result[*Charge]
	FetchPendingInRange(low decimal.Decimal, high decimal.Decimal) utils.Result[[]Charge]
	FetchExpiredPending(now time.Time) utils.Result[[]Charge]
	ConditionalUpdateStatus(id string, expected ChargeStatus, next ChargeStatus, fields map[string]any) utils.Result[bool]
	MarkNotified(id string) utils.Result[bool]
}

func (store *ApiStore) InsertCharge(charge *Charge) utils.Result[*Charge] {
	result := store.db.Connection.Create(charge)
	if result.Error != nil {
		return utils.FailedResult[*Charge](result.Error)
	}

	return utils.SuccessResult(charge)
}

func (store *ApiStore) FetchCharge(id string) utils.Result[*Charge] {
	var charge Charge

	result := store.db.Connection.
		Where("id = ?", id).
		Limit(1).
		Find(&charge)

	if result.Error != nil {
		return failedChargeResult(result.Error)
	}
	if charge.ID == "" {
		return failedChargeResult(gorm.ErrRecordNotFound)
	}

	return utils.SuccessResult(&charge)
}

// FetchPendingInRange returns the open charges whose settled amount falls in
// [low, high], oldest first. The match tie-break relies on this ordering
// being stable.
func (store *ApiStore) FetchPendingInRange(low decimal.Decimal, high decimal.Decimal) utils.Result[[]Charge] {
	var charges []Charge

	result := store.db.Connection.
		Where("status = ? AND settled_amount BETWEEN ? AND ?", ChargeStatusPending, low, high).
		Order("created_at ASC").
		Find(&charges)

	if result.Error != nil {
		return utils.FailedResult[[]Charge](result.Error)
	}

	return utils.SuccessResult(charges)
}

func (store *ApiStore) FetchExpiredPending(now time.Time) utils.Result[[]Charge] {
	var charges []Charge

	result := store.db.Connection.
		Where("status = ? AND deadline < ?", ChargeStatusPending, now).
		Find(&charges)

	if result.Error != nil {
		return utils.FailedResult[[]Charge](result.Error)
	}

	return utils.SuccessResult(charges)
}

// ConditionalUpdateStatus flips a charge's status only when it still holds
// the expected one. A false value means another writer already moved the
// record; callers treat that as a lost race, not an error.
func (store *ApiStore) ConditionalUpdateStatus(id string, expected ChargeStatus, next ChargeStatus, fields map[string]any) utils.Result[bool] {
	updates := map[string]any{"status": next}
	for key, value := range fields {
		updates[key] = value
	}

	result := store.db.Connection.
		Model(&Charge{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)

	if result.Error != nil {
		return utils.FailedBoolResult(result.Error)
	}

	return utils.SuccessResult(result.RowsAffected == 1)
}

// MarkNotified records a delivered webhook. Conditioned on the charge being
// paid, since notified may only ever be true for paid charges.
func (store *ApiStore) MarkNotified(id string) utils.Result[bool] {
	result := store.db.Connection.
		Model(&Charge{}).
		Where("id = ? AND status = ?", id, ChargeStatusPaid).
		Update("notified", true)

	if result.Error != nil {
		return utils.FailedBoolResult(result.Error)
	}

	return utils.SuccessResult(result.RowsAffected == 1)
}

func failedChargeResult(err error) utils.Result[*Charge] {
	result := utils.FailedResult[*Charge](err)

	if err.Error() == gorm.ErrRecordNotFound.Error() {
		result = result.NonCapturable().NonRetryable()
	}

	return result
}
