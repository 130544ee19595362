package model

import (
	"encoding/json"
	"time"
)

// Role of a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Chat stores metadata about a conversation.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message stores a single message in a chat.
type Message struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chat_id"`
	Role      Role            `json:"role"`
	Content   string          `json:"content"`
	Model     *string         `json:"model,omitempty"` // Model used for this specific message.
	Timestamp time.Time       `json:"timestamp"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// MessageMetadata is stored in Message.Metadata for assistant replies.
type MessageMetadata struct {
	Command      string   `json:"command,omitempty"`
	Sources      []string `json:"sources,omitempty"`
	ContextReset bool     `json:"context_reset,omitempty"`
	Vision       bool     `json:"vision,omitempty"`
	Stopped      bool     `json:"stopped,omitempty"`
}

// DecodeMetadata returns the metadata of a message, or the zero value when
// the message has none or it cannot be parsed.
func (m *Message) DecodeMetadata() MessageMetadata {
	var meta MessageMetadata
	if len(m.Metadata) == 0 {
		return meta
	}
	_ = json.Unmarshal(m.Metadata, &meta)
	return meta
}

// FullChat includes the chat metadata and all its messages.
type FullChat struct {
	Chat
	Messages []Message `json:"messages"`
}

// SearchResult is one retrieved page. It lives only until the prompt is built.
type SearchResult struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Subscription plans known to the billing collaborator.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Profile is the authenticated user as seen by the chat backend.
type Profile struct {
	UserID             string `json:"user_id"`
	Email              string `json:"email,omitempty"`
	SubscriptionPlan   string `json:"subscription_plan"`
	SubscriptionStatus string `json:"subscription_status"`
}

// IsPro reports whether the profile is on the paid plan.
func (p *Profile) IsPro() bool {
	return p != nil && p.SubscriptionPlan == PlanPro
}

// CanUseModel reports whether the profile may run name. Free plans are
// limited to freeModel.
func (p *Profile) CanUseModel(name, freeModel string) bool {
	return p.IsPro() || name == freeModel
}

// Settings are the per-user model preferences that used to live in browser storage.
type Settings struct {
	SelectedModel string `json:"selected_model" validate:"required,max=200"`
	OllamaBaseURL string `json:"ollama_base_url,omitempty" validate:"omitempty,url"`
}
