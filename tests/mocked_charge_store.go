package tests

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brpix/pix-processor/models"
	"github.com/brpix/pix-processor/utils"
)

var ErrRecordNotFound = errors.New("record not found")

// MockChargeStore is an in-memory stand-in for the gorm-backed store. It
// honors the conditional-update contract, so race scenarios can be staged by
// pre-setting a charge's status.
type MockChargeStore struct {
	Charges map[string]*models.Charge

	InsertedIDs []string
	UpdateCalls int

	InsertErr error
	FetchErr  error
	UpdateErr error
}

func NewMockChargeStore() *MockChargeStore {
	return &MockChargeStore{
		Charges: make(map[string]*models.Charge),
	}
}

func (s *MockChargeStore) Add(charge *models.Charge) {
	s.Charges[charge.ID] = charge
}

func (s *MockChargeStore) InsertCharge(charge *models.Charge) utils.Result[*models.Charge] {
	if s.InsertErr != nil {
		return utils.FailedResult[*models.Charge](s.InsertErr)
	}

	if charge.CreatedAt.IsZero() {
		charge.CreatedAt = time.Now()
	}

	s.Charges[charge.ID] = charge
	s.InsertedIDs = append(s.InsertedIDs, charge.ID)

	return utils.SuccessResult(charge)
}

func (s *MockChargeStore) FetchCharge(id string) utils.Result[*models.Charge] {
	if s.FetchErr != nil {
		return utils.FailedResult[*models.Charge](s.FetchErr)
	}

	charge, ok := s.Charges[id]
	if !ok {
		return utils.FailedResult[*models.Charge](ErrRecordNotFound).
			NonRetryable().
			NonCapturable()
	}

	return utils.SuccessResult(charge)
}

func (s *MockChargeStore) FetchPendingInRange(low decimal.Decimal, high decimal.Decimal) utils.Result[[]models.Charge] {
	if s.FetchErr != nil {
		return utils.FailedResult[[]models.Charge](s.FetchErr)
	}

	var charges []models.Charge
	for _, charge := range s.Charges {
		inRange := charge.SettledAmount.GreaterThanOrEqual(low) && charge.SettledAmount.LessThanOrEqual(high)
		if charge.Status == models.ChargeStatusPending && inRange {
			charges = append(charges, *charge)
		}
	}

	sort.Slice(charges, func(i, j int) bool {
		return charges[i].CreatedAt.Before(charges[j].CreatedAt)
	})

	return utils.SuccessResult(charges)
}

func (s *MockChargeStore) FetchExpiredPending(now time.Time) utils.Result[[]models.Charge] {
	if s.FetchErr != nil {
		return utils.FailedResult[[]models.Charge](s.FetchErr)
	}

	var charges []models.Charge
	for _, charge := range s.Charges {
		if charge.Status == models.ChargeStatusPending && charge.Deadline.Before(now) {
			charges = append(charges, *charge)
		}
	}

	return utils.SuccessResult(charges)
}

func (s *MockChargeStore) ConditionalUpdateStatus(id string, expected models.ChargeStatus, next models.ChargeStatus, fields map[string]any) utils.Result[bool] {
	s.UpdateCalls++

	if s.UpdateErr != nil {
		return utils.FailedBoolResult(s.UpdateErr)
	}

	charge, ok := s.Charges[id]
	if !ok || charge.Status != expected {
		return utils.SuccessResult(false)
	}

	charge.Status = next
	if settledAt, ok := fields["settled_at"].(time.Time); ok {
		charge.SettledAt.Time = settledAt
		charge.SettledAt.Valid = true
	}

	return utils.SuccessResult(true)
}

func (s *MockChargeStore) MarkNotified(id string) utils.Result[bool] {
	charge, ok := s.Charges[id]
	if !ok || charge.Status != models.ChargeStatusPaid {
		return utils.SuccessResult(false)
	}

	charge.Notified = true
	return utils.SuccessResult(true)
}
