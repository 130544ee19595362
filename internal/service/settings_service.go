package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	app_errors "fireflies/backend/internal/errors"
	"fireflies/backend/internal/model"
	"fireflies/backend/internal/proxy"
)

// Keys of the settings table.
const (
	keySelectedModel = "selected_model"
	keyOllamaBaseURL = "ollama_base_url"
)

// ModelLister lists the models of an inference server. *proxy.Client
// satisfies it.
type ModelLister interface {
	ListModels(ctx context.Context, baseURL string) ([]proxy.ModelInfo, error)
}

// SettingsService is the per-user ConfigStore backed by the settings table.
type SettingsService struct {
	db           *sql.DB
	models       ModelLister
	defaultModel string
	freeModel    string
}

func NewSettingsService(db *sql.DB, models ModelLister, defaultModel, freeModel string) *SettingsService {
	return &SettingsService{db: db, models: models, defaultModel: defaultModel, freeModel: freeModel}
}

// Load returns the user's settings. Missing keys fall back to defaults, so a
// user who never saved anything gets the default model.
func (s *SettingsService) Load(ctx context.Context, userID string) (*model.Settings, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := &model.Settings{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting row: %w", err)
		}
		switch key {
		case keySelectedModel:
			settings.SelectedModel = value
		case keyOllamaBaseURL:
			settings.OllamaBaseURL = value
		default:
			slog.Debug("Ignoring unknown setting", "user_id", userID, "key", key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if settings.SelectedModel == "" {
		settings.SelectedModel = s.defaultModel
	}
	return settings, nil
}

// Save validates the selected model against the profile's plan and the
// inference server, then stores the settings. When the server cannot be
// reached the availability check is skipped; the plan check never is.
func (s *SettingsService) Save(ctx context.Context, profile *model.Profile, settings *model.Settings) error {
	if profile == nil || profile.UserID == "" {
		return app_errors.ErrAuthRequired
	}
	userID := profile.UserID
	if !profile.CanUseModel(settings.SelectedModel, s.freeModel) {
		slog.Warn("Rejected model selection for free plan", "user_id", userID, "model", settings.SelectedModel)
		return fmt.Errorf("%w: model '%s' requires a pro subscription", app_errors.ErrPermission, settings.SelectedModel)
	}

	available, err := s.models.ListModels(ctx, settings.OllamaBaseURL)
	if err != nil {
		slog.Warn("Could not list models for validation, saving settings without check", "user_id", userID, "error", err)
	} else {
		names := make([]string, len(available))
		for i, m := range available {
			names[i] = m.Name
		}
		if !slices.Contains(names, settings.SelectedModel) {
			return fmt.Errorf("%w: model '%s' not found on the inference server", app_errors.ErrValidation, settings.SelectedModel)
		}
	}

	return s.save(ctx, userID, settings)
}

func (s *SettingsService) save(ctx context.Context, userID string, settings *model.Settings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO settings (user_id, key, value) VALUES (?, ?, ?) ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	values := [][2]string{
		{keySelectedModel, settings.SelectedModel},
		{keyOllamaBaseURL, settings.OllamaBaseURL},
	}
	for _, kv := range values {
		if _, err := stmt.ExecContext(ctx, userID, kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", kv[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	slog.Info("Saved user settings", "user_id", userID, "model", settings.SelectedModel)
	return nil
}
