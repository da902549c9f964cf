package models

import (
	"log/slog"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"

	"github.com/brpix/pix-processor/config/database"
)

// Local sqlmock setup rather than the shared tests package helper: tests
// depends on models for its in-memory store, so this package cannot import
// it back.
func setupApiStore(t *testing.T) (*ApiStore, sqlmock.Sqlmock, func()) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(-4)}))

	db, err := database.OpenConnection(logger, dialector)
	if err != nil {
		t.Fatalf("Failed to open gorm connection: %v", err)
	}

	store := &ApiStore{db: db}

	return store, mock, func() {
		mockDB.Close()
	}
}
