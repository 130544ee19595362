package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fireflies/backend/internal/api"
	app_errors "fireflies/backend/internal/errors"
	"fireflies/backend/internal/interfaces/mocks"
	"fireflies/backend/internal/model"
	"fireflies/backend/internal/proxy"
)

func setupModelHandler(t *testing.T) (*api.ModelHandler, *mocks.MockModelService, *mocks.MockConfigStore) {
	mockModelSvc := mocks.NewMockModelService(t)
	mockSettings := mocks.NewMockConfigStore(t)
	handler := api.NewModelHandler(mockModelSvc, mockSettings)
	return handler, mockModelSvc, mockSettings
}

func TestModelHandler_HandleListModels(t *testing.T) {
	t.Run("Success - User's server", func(t *testing.T) {
		handler, mockSvc, mockSettings := setupModelHandler(t)
		mockSettings.On("Load", mock.Anything, "user-1").
			Return(&model.Settings{SelectedModel: "m", OllamaBaseURL: "http://gpu-box:11434"}, nil).Once()
		mockSvc.On("List", mock.Anything, testProfile, "http://gpu-box:11434").
			Return([]proxy.ModelInfo{{Name: "test-model"}}, nil).Once()

		rr := httptest.NewRecorder()
		handler.HandleListModels(rr, newRequest(http.MethodGet, "/api/v1/models", "", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp api.ModelsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "test-model", resp.Models[0].Name)
	})

	t.Run("Success - Explicit server skips settings", func(t *testing.T) {
		handler, mockSvc, _ := setupModelHandler(t)
		mockSvc.On("List", mock.Anything, testProfile, "http://other:11434").Return([]proxy.ModelInfo{}, nil).Once()

		rr := httptest.NewRecorder()
		handler.HandleListModels(rr, newRequest(http.MethodGet, "/api/v1/models?baseUrl=http://other:11434", "", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"models":[]}`, rr.Body.String())
	})

	t.Run("Success - Settings failure uses the default server", func(t *testing.T) {
		handler, mockSvc, mockSettings := setupModelHandler(t)
		mockSettings.On("Load", mock.Anything, "user-1").Return(nil, errors.New("db down")).Once()
		mockSvc.On("List", mock.Anything, testProfile, "").Return([]proxy.ModelInfo{{Name: "a"}}, nil).Once()

		rr := httptest.NewRecorder()
		handler.HandleListModels(rr, newRequest(http.MethodGet, "/api/v1/models", "", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Failure - Server unreachable", func(t *testing.T) {
		handler, mockSvc, mockSettings := setupModelHandler(t)
		mockSettings.On("Load", mock.Anything, "user-1").Return(&model.Settings{}, nil).Once()
		mockSvc.On("List", mock.Anything, testProfile, "").Return(nil, app_errors.ErrTransport).Once()

		rr := httptest.NewRecorder()
		handler.HandleListModels(rr, newRequest(http.MethodGet, "/api/v1/models", "", nil))

		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})
}
