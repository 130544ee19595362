package service_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app_errors "fireflies/backend/internal/errors"
	"fireflies/backend/internal/model"
	"fireflies/backend/internal/proxy"
	"fireflies/backend/internal/service"
	"fireflies/backend/internal/service/mocks"
)

const (
	selectSettings = "SELECT key, value FROM settings WHERE user_id = ?"
	upsertSetting  = "INSERT INTO settings (user_id, key, value) VALUES (?, ?, ?) ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value"
)

func setupSettingsService(t *testing.T) (*service.SettingsService, *sql.DB, sqlmock.Sqlmock, *mocks.MockModelLister) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)

	lister := mocks.NewMockModelLister(t)
	settingsService := service.NewSettingsService(db, lister, "FireFlies:latest", "FireFlies:latest")

	return settingsService, db, mockDB, lister
}

func TestSettingsService_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - Stored settings", func(t *testing.T) {
		settingsService, db, mockDB, _ := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		rows := sqlmock.NewRows([]string{"key", "value"}).
			AddRow("selected_model", "gemma3:4b").
			AddRow("ollama_base_url", "http://gpu-box:11434").
			AddRow("legacy_key", "ignored")
		mockDB.ExpectQuery(regexp.QuoteMeta(selectSettings)).WithArgs("user-1").WillReturnRows(rows)

		settings, err := settingsService.Load(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, "gemma3:4b", settings.SelectedModel)
		assert.Equal(t, "http://gpu-box:11434", settings.OllamaBaseURL)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("Success - Defaults for a new user", func(t *testing.T) {
		settingsService, db, mockDB, _ := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		mockDB.ExpectQuery(regexp.QuoteMeta(selectSettings)).WithArgs("user-2").
			WillReturnRows(sqlmock.NewRows([]string{"key", "value"}))

		settings, err := settingsService.Load(ctx, "user-2")

		require.NoError(t, err)
		assert.Equal(t, "FireFlies:latest", settings.SelectedModel)
		assert.Empty(t, settings.OllamaBaseURL)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("Failure - DB error", func(t *testing.T) {
		settingsService, db, mockDB, _ := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		expectedErr := errors.New("db error")
		mockDB.ExpectQuery(regexp.QuoteMeta(selectSettings)).WillReturnError(expectedErr)

		settings, err := settingsService.Load(ctx, "user-1")

		require.Error(t, err)
		assert.Nil(t, settings)
		assert.Contains(t, err.Error(), expectedErr.Error())
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})
}

func TestSettingsService_Save(t *testing.T) {
	ctx := context.Background()
	settingsToSave := &model.Settings{SelectedModel: "model1", OllamaBaseURL: "http://gpu-box:11434"}
	pro := &model.Profile{UserID: "user-1", SubscriptionPlan: model.PlanPro, SubscriptionStatus: "active"}
	free := &model.Profile{UserID: "user-1", SubscriptionPlan: model.PlanFree, SubscriptionStatus: "active"}

	t.Run("Success - Save valid settings", func(t *testing.T) {
		settingsService, db, mockDB, lister := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		lister.On("ListModels", ctx, "http://gpu-box:11434").
			Return([]proxy.ModelInfo{{Name: "model1"}, {Name: "model2"}}, nil).Once()

		mockDB.ExpectBegin()
		prep := mockDB.ExpectPrepare(regexp.QuoteMeta(upsertSetting))
		prep.ExpectExec().WithArgs("user-1", "selected_model", "model1").WillReturnResult(sqlmock.NewResult(1, 1))
		prep.ExpectExec().WithArgs("user-1", "ollama_base_url", "http://gpu-box:11434").WillReturnResult(sqlmock.NewResult(1, 1))
		mockDB.ExpectCommit()

		err := settingsService.Save(ctx, pro, settingsToSave)

		require.NoError(t, err)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("Failure - Model not available", func(t *testing.T) {
		settingsService, db, mockDB, lister := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		lister.On("ListModels", ctx, "http://gpu-box:11434").
			Return([]proxy.ModelInfo{{Name: "another-model"}}, nil).Once()

		err := settingsService.Save(ctx, pro, settingsToSave)

		require.Error(t, err)
		assert.ErrorIs(t, err, app_errors.ErrValidation)
		assert.Contains(t, err.Error(), "model 'model1' not found")
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("Success - Server unreachable skips the check", func(t *testing.T) {
		settingsService, db, mockDB, lister := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		lister.On("ListModels", ctx, "http://gpu-box:11434").Return(nil, errors.New("connection refused")).Once()

		mockDB.ExpectBegin()
		prep := mockDB.ExpectPrepare(regexp.QuoteMeta(upsertSetting))
		prep.ExpectExec().WithArgs("user-1", "selected_model", "model1").WillReturnResult(sqlmock.NewResult(1, 1))
		prep.ExpectExec().WithArgs("user-1", "ollama_base_url", "http://gpu-box:11434").WillReturnResult(sqlmock.NewResult(1, 1))
		mockDB.ExpectCommit()

		require.NoError(t, settingsService.Save(ctx, pro, settingsToSave))
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("Failure - Exec error rolls back", func(t *testing.T) {
		settingsService, db, mockDB, lister := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		lister.On("ListModels", ctx, "http://gpu-box:11434").Return([]proxy.ModelInfo{{Name: "model1"}}, nil).Once()

		mockDB.ExpectBegin()
		prep := mockDB.ExpectPrepare(regexp.QuoteMeta(upsertSetting))
		prep.ExpectExec().WithArgs("user-1", "selected_model", "model1").WillReturnError(errors.New("locked"))
		mockDB.ExpectRollback()

		err := settingsService.Save(ctx, pro, settingsToSave)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "selected_model")
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("Failure - Free plan selects a pro model", func(t *testing.T) {
		// GOAL: a free profile cannot store a model outside its plan, and the
		// inference server is not even asked.
		settingsService, db, mockDB, lister := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		err := settingsService.Save(ctx, free, &model.Settings{SelectedModel: "llama3:70b"})

		require.Error(t, err)
		assert.ErrorIs(t, err, app_errors.ErrPermission)
		assert.Contains(t, err.Error(), "llama3:70b")
		lister.AssertNotCalled(t, "ListModels", mock.Anything, mock.Anything)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("Success - Free plan keeps the free model", func(t *testing.T) {
		settingsService, db, mockDB, lister := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		lister.On("ListModels", ctx, "").Return([]proxy.ModelInfo{{Name: "FireFlies:latest"}, {Name: "llama3:70b"}}, nil).Once()

		mockDB.ExpectBegin()
		prep := mockDB.ExpectPrepare(regexp.QuoteMeta(upsertSetting))
		prep.ExpectExec().WithArgs("user-1", "selected_model", "FireFlies:latest").WillReturnResult(sqlmock.NewResult(1, 1))
		prep.ExpectExec().WithArgs("user-1", "ollama_base_url", "").WillReturnResult(sqlmock.NewResult(1, 1))
		mockDB.ExpectCommit()

		require.NoError(t, settingsService.Save(ctx, free, &model.Settings{SelectedModel: "FireFlies:latest"}))
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("Failure - No profile", func(t *testing.T) {
		settingsService, db, _, _ := setupSettingsService(t)
		defer func() { _ = db.Close() }()

		err := settingsService.Save(ctx, nil, settingsToSave)

		assert.ErrorIs(t, err, app_errors.ErrAuthRequired)
	})
}
