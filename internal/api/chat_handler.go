package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fireflies/backend/internal/interfaces"
	"fireflies/backend/internal/model"
	"fireflies/backend/internal/service"
)

type ChatHandler struct {
	chats    interfaces.ChatService
	settings interfaces.ConfigStore
}

func NewChatHandler(chats interfaces.ChatService, settings interfaces.ConfigStore) *ChatHandler {
	return &ChatHandler{chats: chats, settings: settings}
}

// GetSettings godoc
// @Summary      Get model settings
// @Description  Retrieves the caller's selected model and inference server.
// @Tags         Settings
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.Settings
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/settings [get]
func (h *ChatHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	profile, ok := profileOrFail(w, r)
	if !ok {
		return
	}
	settings, err := h.settings.Load(r.Context(), profile.UserID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// UpdateSettings godoc
// @Summary      Update model settings
// @Description  Saves the caller's model settings. The model must exist on the chosen server and be allowed by the caller's plan.
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        settings  body      model.Settings  true  "New settings"
// @Success      200       {object}  StatusResponse
// @Failure      400       {object}  ErrorResponse
// @Failure      401       {object}  ErrorResponse
// @Failure      403       {object}  ErrorResponse
// @Router       /v1/settings [put]
func (h *ChatHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	profile, ok := profileOrFail(w, r)
	if !ok {
		return
	}
	var settings model.Settings
	if err := decodeAndValidate(w, r, &settings); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.settings.Save(r.Context(), profile, &settings); err != nil {
		respondWithError(w, err)
		return
	}
	slog.Info("Settings updated", "user_id", profile.UserID, "model", settings.SelectedModel)
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// GetSubscription godoc
// @Summary      Get subscription
// @Description  Returns the caller's subscription plan and status.
// @Tags         Settings
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  SubscriptionResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /v1/subscription [get]
func (h *ChatHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	profile, ok := profileOrFail(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, SubscriptionResponse{
		Plan:   profile.SubscriptionPlan,
		Status: profile.SubscriptionStatus,
		IsPro:  profile.IsPro(),
	})
}

// GetChats godoc
// @Summary      List chats
// @Description  Retrieves the caller's chats, most recently updated first.
// @Tags         Chats
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   model.Chat
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/chats [get]
func (h *ChatHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	profile, ok := profileOrFail(w, r)
	if !ok {
		return
	}
	chats, err := h.chats.ListChats(r.Context(), profile.UserID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if chats == nil {
		chats = []*model.Chat{}
	}
	respondWithJSON(w, http.StatusOK, chats)
}

// GetChat godoc
// @Summary      Get a chat
// @Description  Retrieves a chat with all of its messages.
// @Tags         Chats
// @Produce      json
// @Security     BearerAuth
// @Param        chatID  path      string  true  "Chat ID"
// @Success      200     {object}  model.FullChat
// @Failure      404     {object}  ErrorResponse
// @Router       /v1/chats/{chatID} [get]
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	profile, ok := profileOrFail(w, r)
	if !ok {
		return
	}
	fullChat, err := h.chats.GetFullChat(r.Context(), profile.UserID, chi.URLParam(r, "chatID"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, fullChat)
}

// UpdateChatTitle godoc
// @Summary      Rename a chat
// @Tags         Chats
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        chatID  path      string              true  "Chat ID"
// @Param        title   body      UpdateTitleRequest  true  "New title"
// @Success      200     {object}  StatusResponse
// @Failure      400     {object}  ErrorResponse
// @Failure      404     {object}  ErrorResponse
// @Router       /v1/chats/{chatID}/title [put]
func (h *ChatHandler) UpdateChatTitle(w http.ResponseWriter, r *http.Request) {
	profile, ok := profileOrFail(w, r)
	if !ok {
		return
	}
	var req UpdateTitleRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.chats.UpdateChatTitle(r.Context(), profile.UserID, chi.URLParam(r, "chatID"), req.Title); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// HandleDeleteChat godoc
// @Summary      Delete a chat
// @Description  Deletes a chat and its messages. Refused while a generation is running.
// @Tags         Chats
// @Produce      json
// @Security     BearerAuth
// @Param        chatID  path      string  true  "Chat ID"
// @Success      200     {object}  StatusResponse
// @Failure      404     {object}  ErrorResponse
// @Failure      409     {object}  ErrorResponse
// @Router       /v1/chats/{chatID} [delete]
func (h *ChatHandler) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	profile, ok := profileOrFail(w, r)
	if !ok {
		return
	}
	if err := h.chats.DeleteChat(r.Context(), profile.UserID, chi.URLParam(r, "chatID")); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// HandleSendMessage godoc
// @Summary      Send a message
// @Description  Persists the message, runs the command it names (or plain chat) and returns the assistant reply. Without chat_id a new chat is created.
// @Tags         Chats
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        message  body      service.SendMessageRequest  true  "Message"
// @Success      200      {object}  service.SendMessageResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      401      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Router       /v1/chats/messages [post]
func (h *ChatHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	profile, ok := profileOrFail(w, r)
	if !ok {
		return
	}
	var req service.SendMessageRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	resp, err := h.chats.SendMessage(r.Context(), profile, &req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// HandleStopGeneration godoc
// @Summary      Stop generation
// @Description  Aborts the chat's in-flight generation and records a stop notice.
// @Tags         Chats
// @Produce      json
// @Security     BearerAuth
// @Param        chatID  path      string  true  "Chat ID"
// @Success      200     {object}  StopResponse
// @Failure      404     {object}  ErrorResponse
// @Router       /v1/chats/{chatID}/stop [post]
func (h *ChatHandler) HandleStopGeneration(w http.ResponseWriter, r *http.Request) {
	profile, ok := profileOrFail(w, r)
	if !ok {
		return
	}
	stopped, err := h.chats.StopGeneration(r.Context(), profile.UserID, chi.URLParam(r, "chatID"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StopResponse{Stopped: stopped})
}
