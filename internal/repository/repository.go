package repository

import (
	"context"

	"fireflies/backend/internal/model"
)

// Repository defines the interface for chat history storage.
type Repository interface {
	CreateChat(ctx context.Context, chat *model.Chat) error
	GetChat(ctx context.Context, chatID string) (*model.Chat, error)
	GetChats(ctx context.Context, userID string) ([]*model.Chat, error)
	UpdateChatTitle(ctx context.Context, chatID, newTitle string) error
	DeleteChat(ctx context.Context, chatID string) error

	AddMessage(ctx context.Context, message *model.Message, chatID string) error
	GetMessages(ctx context.Context, chatID string) ([]model.Message, error)
}
