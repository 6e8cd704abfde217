package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/paisabook/paisabook/model"
)

// GetSettings returns the singleton settings record, or nil if it has never
// been written.
func (s *SQLiteStorage) GetSettings(ctx context.Context) (*model.Settings, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getSettingsTx(ctx, s.db)
}

func (s *SQLiteStorage) getSettingsTx(ctx context.Context, q queryable) (*model.Settings, error) {
	query := `
		SELECT currency, setup_complete, updated_at
		FROM settings
		WHERE id = 1`

	var settings model.Settings
	var setupComplete int
	err := q.QueryRowContext(ctx, query).Scan(&settings.Currency, &setupComplete, &settings.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Settings not created yet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}

	settings.SetupComplete = setupComplete == 1
	return &settings, nil
}

// SaveSettings writes the singleton settings record, creating it on first
// use.
func (s *SQLiteStorage) SaveSettings(ctx context.Context, settings *model.Settings) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if settings == nil {
		return fmt.Errorf("%w: settings", ErrNilParameter)
	}
	return s.saveSettingsTx(ctx, s.db, settings)
}

func (s *SQLiteStorage) saveSettingsTx(ctx context.Context, q queryable, settings *model.Settings) error {
	query := `
		INSERT INTO settings (id, currency, setup_complete, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			currency = excluded.currency,
			setup_complete = excluded.setup_complete,
			updated_at = excluded.updated_at`

	setupComplete := 0
	if settings.SetupComplete {
		setupComplete = 1
	}
	updatedAt := settings.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	if _, err := q.ExecContext(ctx, query, settings.Currency, setupComplete, updatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	slog.Debug("saved settings",
		"currency", settings.Currency,
		"setup_complete", settings.SetupComplete)
	return nil
}
