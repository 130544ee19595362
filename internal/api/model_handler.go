package api

import (
	"log/slog"
	"net/http"

	"fireflies/backend/internal/interfaces"
	"fireflies/backend/internal/proxy"
)

// ModelHandler handles HTTP requests for model listing.
type ModelHandler struct {
	models   interfaces.ModelService
	settings interfaces.ConfigStore
}

func NewModelHandler(models interfaces.ModelService, settings interfaces.ConfigStore) *ModelHandler {
	return &ModelHandler{models: models, settings: settings}
}

// ModelsResponse lists the models of one inference server.
type ModelsResponse struct {
	Models []proxy.ModelInfo `json:"models"`
}

// HandleListModels godoc
// @Summary      List models
// @Description  Lists the models of the caller's inference server, or of the server given in baseUrl. Free plans only see the free model.
// @Tags         Models
// @Produce      json
// @Security     BearerAuth
// @Param        baseUrl  query     string  false  "Inference server to query"
// @Success      200      {object}  ModelsResponse
// @Failure      502      {object}  ErrorResponse
// @Router       /v1/models [get]
func (h *ModelHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	profile, ok := profileOrFail(w, r)
	if !ok {
		return
	}

	baseURL := r.URL.Query().Get("baseUrl")
	if baseURL == "" {
		if settings, err := h.settings.Load(r.Context(), profile.UserID); err != nil {
			slog.Warn("Could not load settings for model listing", "user_id", profile.UserID, "error", err)
		} else {
			baseURL = settings.OllamaBaseURL
		}
	}

	models, err := h.models.List(r.Context(), profile, baseURL)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if models == nil {
		models = []proxy.ModelInfo{}
	}
	respondWithJSON(w, http.StatusOK, ModelsResponse{Models: models})
}
