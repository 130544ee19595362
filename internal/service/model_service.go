package service

import (
	"context"

	"fireflies/backend/internal/model"
	"fireflies/backend/internal/proxy"
)

// ModelService lists the models a user can pick from.
type ModelService struct {
	models    ModelLister
	freeModel string
}

func NewModelService(models ModelLister, freeModel string) *ModelService {
	return &ModelService{models: models, freeModel: freeModel}
}

// List returns the models of the inference server at baseURL, or of the
// default server when baseURL is empty. Free plans only see the free model.
func (s *ModelService) List(ctx context.Context, profile *model.Profile, baseURL string) ([]proxy.ModelInfo, error) {
	models, err := s.models.ListModels(ctx, baseURL)
	if err != nil {
		return nil, err
	}
	if profile.IsPro() {
		return models, nil
	}

	allowed := make([]proxy.ModelInfo, 0, 1)
	for _, m := range models {
		if profile.CanUseModel(m.Name, s.freeModel) {
			allowed = append(allowed, m)
		}
	}
	return allowed, nil
}
