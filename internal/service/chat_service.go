package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fireflies/backend/internal/command"
	app_errors "fireflies/backend/internal/errors"
	"fireflies/backend/internal/model"
	"fireflies/backend/internal/proxy"
	"fireflies/backend/internal/rag"
	"fireflies/backend/internal/repository"
	"fireflies/backend/internal/session"
)

const maxTitleLength = 50

// CommandExecutor runs retrieval commands. *rag.Pipeline satisfies it.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd command.Command, modelName, baseURL string) (rag.Reply, error)
}

// SettingsLoader reads a user's model settings.
type SettingsLoader interface {
	Load(ctx context.Context, userID string) (*model.Settings, error)
}

// SendMessageRequest is one submitted chat message. Image is base64, with or
// without a data-URL prefix.
type SendMessageRequest struct {
	ChatID  string `json:"chat_id,omitempty"`
	Content string `json:"content" validate:"max=20000"`
	Image   string `json:"image,omitempty"`
}

// SendMessageResponse carries both persisted messages of the exchange.
// AssistantMessage is nil when the generation was stopped.
type SendMessageResponse struct {
	ChatID           string         `json:"chat_id"`
	UserMessage      *model.Message `json:"user_message"`
	AssistantMessage *model.Message `json:"assistant_message,omitempty"`
	State            string         `json:"state"`
}

type ChatService struct {
	repo     repository.Repository
	pipeline CommandExecutor
	settings SettingsLoader
	sessions *session.Controller

	freeModel string
}

func NewChatService(repo repository.Repository, pipeline CommandExecutor, generator session.Generator, settings SettingsLoader, visionModel, freeModel string) *ChatService {
	s := &ChatService{repo: repo, pipeline: pipeline, settings: settings, freeModel: freeModel}
	s.sessions = session.NewController(generator, s, visionModel)
	return s
}

// SendMessage persists the user's message, routes it and waits for the
// assistant reply. Only one message per chat can be in flight.
func (s *ChatService) SendMessage(ctx context.Context, profile *model.Profile, req *SendMessageRequest) (*SendMessageResponse, error) {
	if profile == nil || profile.UserID == "" {
		return nil, app_errors.ErrAuthRequired
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		return nil, err
	}
	content := req.Content
	if strings.TrimSpace(content) == "" {
		if len(image) == 0 {
			return nil, fmt.Errorf("%w: message content cannot be empty", app_errors.ErrValidation)
		}
		content = session.DefaultImagePrompt
	}

	chat, err := s.resolveChat(ctx, profile.UserID, req.ChatID, content)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Acquire(ctx, chat.ID)
	if err != nil {
		return nil, err
	}

	history, err := s.historySinceReset(ctx, chat.ID)
	if err != nil {
		slog.Warn("Could not load chat history, continuing without it", "chat_id", chat.ID, "error", err)
	}

	userMessage := &model.Message{
		ID:        uuid.NewString(),
		ChatID:    chat.ID,
		Role:      model.RoleUser,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := s.repo.AddMessage(ctx, userMessage, chat.ID); err != nil {
		sess.Release()
		return nil, fmt.Errorf("%w: could not save user message: %w", app_errors.ErrInternal, err)
	}

	settings := s.loadSettings(ctx, profile)
	cmd := command.Route(content, image)
	slog.Info("Routing chat message", "chat_id", chat.ID, "command", cmd.Name())

	var outcome session.Outcome
	if plain, ok := cmd.(command.PlainChat); ok {
		outcome = sess.Generate(session.Request{
			Prompt:  plain.Text,
			Model:   settings.SelectedModel,
			BaseURL: settings.OllamaBaseURL,
			Image:   plain.Image,
			History: history,
		})
	} else {
		outcome = sess.Run(func(ctx context.Context) (session.Result, error) {
			reply, err := s.pipeline.Execute(ctx, cmd, settings.SelectedModel, settings.OllamaBaseURL)
			if err != nil {
				return session.Result{}, err
			}
			return session.Result{Content: reply.Content, Model: settings.SelectedModel, Metadata: reply.Metadata()}, nil
		})
	}

	if outcome.Message == nil && outcome.State != session.Cancelled {
		return nil, fmt.Errorf("%w: could not save assistant message: %w", app_errors.ErrInternal, outcome.Err)
	}

	return &SendMessageResponse{
		ChatID:           chat.ID,
		UserMessage:      userMessage,
		AssistantMessage: outcome.Message,
		State:            outcome.State.String(),
	}, nil
}

// StopGeneration aborts the chat's in-flight generation. It reports whether
// anything was running.
func (s *ChatService) StopGeneration(ctx context.Context, userID, chatID string) (bool, error) {
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return false, err
	}
	return s.sessions.Stop(ctx, chatID)
}

// GenerationState returns the state of the chat's session.
func (s *ChatService) GenerationState(chatID string) session.State {
	return s.sessions.State(chatID)
}

// AppendAssistant persists an assistant message. It implements
// session.Recorder.
func (s *ChatService) AppendAssistant(ctx context.Context, chatID, content, modelName string, meta model.MessageMetadata) (*model.Message, error) {
	msg := &model.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      model.RoleAssistant,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if modelName != "" {
		msg.Model = &modelName
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("could not marshal message metadata: %w", err)
	}
	if string(raw) != "{}" {
		msg.Metadata = raw
	}

	if err := s.repo.AddMessage(ctx, msg, chatID); err != nil {
		return nil, err
	}
	return msg, nil
}

// UpdateChatTitle renames a chat owned by userID.
func (s *ChatService) UpdateChatTitle(ctx context.Context, userID, chatID, newTitle string) error {
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" {
		return fmt.Errorf("%w: title cannot be empty", app_errors.ErrValidation)
	}
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}
	slog.Info("Updating chat title", "chat_id", chatID, "title", newTitle)
	return mapRepoError(s.repo.UpdateChatTitle(ctx, chatID, newTitle))
}

// DeleteChat removes a chat and its messages. A chat with a generation in
// flight cannot be deleted.
func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID string) error {
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}
	if s.sessions.Active(chatID) {
		return fmt.Errorf("%w: chat %s has a generation in flight", app_errors.ErrConflict, chatID)
	}
	slog.Info("Deleting chat", "chat_id", chatID)
	return mapRepoError(s.repo.DeleteChat(ctx, chatID))
}

// ListChats returns the user's chats, most recently updated first.
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]*model.Chat, error) {
	return s.repo.GetChats(ctx, userID)
}

// GetFullChat retrieves a chat's metadata and all its messages.
func (s *ChatService) GetFullChat(ctx context.Context, userID, chatID string) (*model.FullChat, error) {
	chat, err := s.ownedChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	messages, err := s.repo.GetMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("could not get messages: %w", err)
	}
	return &model.FullChat{Chat: *chat, Messages: messages}, nil
}

func (s *ChatService) resolveChat(ctx context.Context, userID, chatID, content string) (*model.Chat, error) {
	if chatID != "" {
		return s.ownedChat(ctx, userID, chatID)
	}

	now := time.Now().UTC()
	chat := &model.Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     ChatTitle(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("%w: could not create chat: %w", app_errors.ErrInternal, err)
	}
	slog.Info("Created chat", "chat_id", chat.ID, "user_id", userID)
	return chat, nil
}

// ownedChat loads a chat and hides chats of other users behind ErrNotFound.
func (s *ChatService) ownedChat(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	chat, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if chat.UserID != userID {
		return nil, fmt.Errorf("%w: chat %s", app_errors.ErrNotFound, chatID)
	}
	return chat, nil
}

// historySinceReset returns the chat's turns after the last /clear, without
// stop notices.
func (s *ChatService) historySinceReset(ctx context.Context, chatID string) ([]proxy.HistoryMessage, error) {
	messages, err := s.repo.GetMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}

	start := 0
	for i, msg := range messages {
		if msg.Role == model.RoleAssistant && msg.DecodeMetadata().ContextReset {
			start = i + 1
		}
	}

	history := make([]proxy.HistoryMessage, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		if msg.DecodeMetadata().Stopped {
			continue
		}
		history = append(history, proxy.HistoryMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return history, nil
}

// loadSettings returns the user's settings with the selected model narrowed
// to what the profile's plan allows.
func (s *ChatService) loadSettings(ctx context.Context, profile *model.Profile) *model.Settings {
	settings, err := s.settings.Load(ctx, profile.UserID)
	if err != nil || settings == nil {
		slog.Warn("Could not load user settings, using server defaults", "user_id", profile.UserID, "error", err)
		settings = &model.Settings{}
	}
	if !profile.CanUseModel(settings.SelectedModel, s.freeModel) {
		slog.Info("Selected model not in plan, using free model", "user_id", profile.UserID, "selected", settings.SelectedModel, "model", s.freeModel)
		settings.SelectedModel = s.freeModel
	}
	return settings
}

// ChatTitle derives a chat title from its first message.
func ChatTitle(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) > maxTitleLength {
		return string(runes[:maxTitleLength]) + "..."
	}
	return string(runes)
}

func decodeImage(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	if i := strings.Index(encoded, ","); strings.HasPrefix(encoded, "data:") && i >= 0 {
		encoded = encoded[i+1:]
	}
	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: image is not valid base64", app_errors.ErrValidation)
	}
	return image, nil
}

func mapRepoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", app_errors.ErrNotFound, err)
	}
	return err
}
