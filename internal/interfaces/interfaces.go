package interfaces

import (
	"context"

	"fireflies/backend/internal/model"
	"fireflies/backend/internal/proxy"
	"fireflies/backend/internal/service"
)

// These are the contracts the API layer depends on.

// ChatService defines the contract for chat-related business logic.
type ChatService interface {
	SendMessage(ctx context.Context, profile *model.Profile, req *service.SendMessageRequest) (*service.SendMessageResponse, error)
	StopGeneration(ctx context.Context, userID, chatID string) (bool, error)
	UpdateChatTitle(ctx context.Context, userID, chatID, newTitle string) error
	DeleteChat(ctx context.Context, userID, chatID string) error
	ListChats(ctx context.Context, userID string) ([]*model.Chat, error)
	GetFullChat(ctx context.Context, userID, chatID string) (*model.FullChat, error)
}

// ModelService lists the models of an inference server a profile may use.
type ModelService interface {
	List(ctx context.Context, profile *model.Profile, baseURL string) ([]proxy.ModelInfo, error)
}

// ConfigStore loads and saves the per-user model settings.
type ConfigStore interface {
	Load(ctx context.Context, userID string) (*model.Settings, error)
	Save(ctx context.Context, profile *model.Profile, settings *model.Settings) error
}
