package models

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var chargeColumns = []string{
	"id", "owner_id", "requested_amount", "settled_amount", "payment_code",
	"artifact_path", "status", "deadline", "settled_at", "notified",
	"created_at", "updated_at",
}

func chargeRow(id string, status ChargeStatus) *sqlmock.Rows {
	now := time.Now()

	return sqlmock.NewRows(chargeColumns).AddRow(
		id, "user-1", "150.00", "150.02", "000201pix", "pix_user-1.png",
		string(status), now.Add(time.Hour), nil, false, now, now,
	)
}

func TestFetchCharge(t *testing.T) {
	t.Run("should return charge when found", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT \* FROM "charges" WHERE id = .*`).
			WillReturnRows(chargeRow("charge-1", ChargeStatusPending))

		result := store.FetchCharge("charge-1")

		assert.True(t, result.Success())

		charge := result.Value()
		assert.Equal(t, "charge-1", charge.ID)
		assert.Equal(t, "user-1", charge.OwnerID)
		assert.Equal(t, ChargeStatusPending, charge.Status)
		assert.True(t, charge.SettledAmount.Equal(decimal.RequireFromString("150.02")))
	})

	t.Run("should return not found for missing charge", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT \* FROM "charges" WHERE id = .*`).
			WillReturnRows(sqlmock.NewRows(chargeColumns))

		result := store.FetchCharge("missing")

		assert.False(t, result.Success())
		assert.Equal(t, gorm.ErrRecordNotFound, result.Error())
		assert.False(t, result.IsCapturable())
		assert.False(t, result.IsRetryable())
	})

	t.Run("should handle database connection error", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		dbError := errors.New("database connection failed")
		mock.ExpectQuery(`SELECT \* FROM "charges" WHERE id = .*`).
			WillReturnError(dbError)

		result := store.FetchCharge("charge-1")

		assert.False(t, result.Success())
		assert.Equal(t, dbError, result.Error())
		assert.True(t, result.IsCapturable())
		assert.True(t, result.IsRetryable())
	})
}

func TestFetchPendingInRange(t *testing.T) {
	t.Run("should return pending charges oldest first", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		now := time.Now()
		rows := sqlmock.NewRows(chargeColumns).
			AddRow("charge-old", "user-1", "150.00", "150.01", "code", "a.png",
				string(ChargeStatusPending), now.Add(time.Hour), nil, false, now.Add(-time.Hour), now).
			AddRow("charge-new", "user-2", "150.00", "150.02", "code", "b.png",
				string(ChargeStatusPending), now.Add(time.Hour), nil, false, now, now)

		mock.ExpectQuery(`SELECT \* FROM "charges" WHERE status = .* AND settled_amount BETWEEN .* ORDER BY created_at ASC`).
			WillReturnRows(rows)

		result := store.FetchPendingInRange(
			decimal.RequireFromString("149.99"),
			decimal.RequireFromString("150.05"),
		)

		assert.True(t, result.Success())

		charges := result.Value()
		assert.Len(t, charges, 2)
		assert.Equal(t, "charge-old", charges[0].ID)
		assert.Equal(t, "charge-new", charges[1].ID)
	})

	t.Run("should return empty slice when nothing matches", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT \* FROM "charges" WHERE status = .*`).
			WillReturnRows(sqlmock.NewRows(chargeColumns))

		result := store.FetchPendingInRange(
			decimal.RequireFromString("9.99"),
			decimal.RequireFromString("10.05"),
		)

		assert.True(t, result.Success())
		assert.Empty(t, result.Value())
	})
}

func TestFetchExpiredPending(t *testing.T) {
	t.Run("should return overdue pending charges", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT \* FROM "charges" WHERE status = .* AND deadline < .*`).
			WillReturnRows(chargeRow("charge-1", ChargeStatusPending))

		result := store.FetchExpiredPending(time.Now())

		assert.True(t, result.Success())
		assert.Len(t, result.Value(), 1)
		assert.Equal(t, "charge-1", result.Value()[0].ID)
	})

	t.Run("should handle database error", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		dbError := errors.New("database connection failed")
		mock.ExpectQuery(`SELECT \* FROM "charges" WHERE status = .*`).
			WillReturnError(dbError)

		result := store.FetchExpiredPending(time.Now())

		assert.False(t, result.Success())
		assert.Equal(t, dbError, result.Error())
	})
}

func TestConditionalUpdateStatus(t *testing.T) {
	t.Run("should report true when the row was moved", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "charges" SET .* WHERE id = .* AND status = .*`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result := store.ConditionalUpdateStatus("charge-1", ChargeStatusPending, ChargeStatusPaid,
			map[string]any{"settled_at": time.Now()})

		assert.True(t, result.Success())
		assert.True(t, result.Value())
	})

	t.Run("should report false when another writer won", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "charges" SET .* WHERE id = .* AND status = .*`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		result := store.ConditionalUpdateStatus("charge-1", ChargeStatusPending, ChargeStatusExpired, nil)

		assert.True(t, result.Success())
		assert.False(t, result.Value())
	})

	t.Run("should handle database error", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		dbError := errors.New("database connection failed")
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "charges" SET .*`).
			WillReturnError(dbError)
		mock.ExpectRollback()

		result := store.ConditionalUpdateStatus("charge-1", ChargeStatusPending, ChargeStatusPaid, nil)

		assert.False(t, result.Success())
		assert.Equal(t, dbError, result.Error())
	})
}

func TestMarkNotified(t *testing.T) {
	t.Run("should flag a paid charge as notified", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "charges" SET .*"notified".* WHERE id = .* AND status = .*`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result := store.MarkNotified("charge-1")

		assert.True(t, result.Success())
		assert.True(t, result.Value())
	})

	t.Run("should report false for a non-paid charge", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "charges" SET .*"notified".*`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		result := store.MarkNotified("charge-1")

		assert.True(t, result.Success())
		assert.False(t, result.Value())
	})
}

func TestInsertCharge(t *testing.T) {
	t.Run("should persist a new charge", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "charges" .*`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		charge := &Charge{
			ID:              "charge-1",
			OwnerID:         "user-1",
			RequestedAmount: decimal.RequireFromString("150.00"),
			SettledAmount:   decimal.RequireFromString("150.02"),
			PaymentCode:     "000201pix",
			ArtifactPath:    "pix_user-1.png",
			Status:          ChargeStatusPending,
			Deadline:        time.Now().Add(time.Hour),
		}

		result := store.InsertCharge(charge)

		require.True(t, result.Success())
		assert.Equal(t, "charge-1", result.Value().ID)
	})

	t.Run("should handle insert failure", func(t *testing.T) {
		store, mock, cleanup := setupApiStore(t)
		defer cleanup()

		dbError := errors.New("duplicate key value")
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "charges" .*`).
			WillReturnError(dbError)
		mock.ExpectRollback()

		result := store.InsertCharge(&Charge{ID: "charge-1", Status: ChargeStatusPending})

		assert.False(t, result.Success())
		assert.Equal(t, dbError, result.Error())
	})
}
