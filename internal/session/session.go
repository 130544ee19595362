// Package session runs one inference at a time per chat and guarantees that
// every run ends in exactly one persisted assistant message: the answer, the
// error fallback, or the stop notice.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	app_errors "fireflies/backend/internal/errors"
	"fireflies/backend/internal/model"
	"fireflies/backend/internal/proxy"
)

// Fixed chat texts written by the controller.
const (
	StopMessage        = "🛑 **Generation stopped by user**"
	ErrorMessage       = "❌ Maaf, API LLM sedang mengalami error.\n\n💡 **Alternative:** Use /cari [query] for web search instead!"
	NoResponseMessage  = "Maaf, tidak ada respons dari AI."
	DefaultImagePrompt = "Describe this image in detail in Indonesian language."
)

// State of a generation session.
type State int

const (
	Idle State = iota
	Sending
	Streaming
	Completed
	Cancelled
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Generator runs one inference call. *proxy.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req *proxy.GenerateRequest) (string, error)
}

// Recorder persists an assistant message for a chat.
type Recorder interface {
	AppendAssistant(ctx context.Context, chatID, content, modelName string, meta model.MessageMetadata) (*model.Message, error)
}

// Result is what a unit of work produces for the chat.
type Result struct {
	Content  string
	Model    string
	Metadata model.MessageMetadata
}

// Outcome describes how a session ended. Message is nil when nothing was
// persisted by this run (a stopped session, or a failed write).
type Outcome struct {
	SessionID string
	State     State
	Message   *model.Message
	Err       error
}

// Request is a plain chat or vision inference.
type Request struct {
	Prompt  string
	Model   string
	BaseURL string
	Image   []byte
	History []proxy.HistoryMessage
}

// Controller tracks the active session of every chat.
type Controller struct {
	gen         Generator
	rec         Recorder
	visionModel string

	mu     sync.Mutex
	active map[string]*Session
}

func NewController(gen Generator, rec Recorder, visionModel string) *Controller {
	return &Controller{
		gen:         gen,
		rec:         rec,
		visionModel: visionModel,
		active:      make(map[string]*Session),
	}
}

// Session is one in-flight exchange of a chat.
type Session struct {
	ID     string
	ChatID string

	ctrl   *Controller
	ctx    context.Context
	cancel context.CancelFunc
	state  State

	// committed is set when work starts. A stop arriving before that leaves
	// the notice to commit, so it is written after whatever the caller
	// persisted between Acquire and Run.
	committed   bool
	stopPending bool
}

// Acquire registers a new session for chatID. It fails with ErrConflict when
// the chat already has one. The session outlives the caller's cancellation;
// only Stop or Release end it early.
func (c *Controller) Acquire(ctx context.Context, chatID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.active[chatID]; busy {
		return nil, fmt.Errorf("%w: a generation is already running for chat %s", app_errors.ErrConflict, chatID)
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		ID:     uuid.NewString(),
		ChatID: chatID,
		ctrl:   c,
		ctx:    sctx,
		cancel: cancel,
		state:  Sending,
	}
	c.active[chatID] = s
	return s, nil
}

// State returns the state of the chat's active session, or Idle.
func (c *Controller) State(chatID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.active[chatID]; ok {
		return s.state
	}
	return Idle
}

// Active reports whether chatID has a session in flight.
func (c *Controller) Active(chatID string) bool {
	return c.State(chatID) != Idle
}

// Stop aborts the chat's active session and appends the stop notice. It
// returns false when nothing was running. A response that arrives after Stop
// is discarded.
func (c *Controller) Stop(ctx context.Context, chatID string) (bool, error) {
	c.mu.Lock()
	s, ok := c.active[chatID]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}
	s.state = Cancelled
	s.cancel()
	delete(c.active, chatID)
	deferred := !s.committed
	s.stopPending = deferred
	c.mu.Unlock()

	slog.Info("Generation stopped by user", "chat_id", chatID, "session_id", s.ID)
	if deferred {
		return true, nil
	}
	if _, err := c.rec.AppendAssistant(ctx, chatID, StopMessage, "", model.MessageMetadata{Stopped: true}); err != nil {
		return true, fmt.Errorf("could not record stop message: %w", err)
	}
	return true, nil
}

// commit marks the session as started. If it was stopped before that, commit
// writes the deferred stop notice and reports false.
func (s *Session) commit() (bool, error) {
	c := s.ctrl
	c.mu.Lock()
	s.committed = true
	pending := s.stopPending
	s.stopPending = false
	c.mu.Unlock()

	if !pending {
		return true, nil
	}
	if _, err := c.rec.AppendAssistant(context.WithoutCancel(s.ctx), s.ChatID, StopMessage, "", model.MessageMetadata{Stopped: true}); err != nil {
		return false, fmt.Errorf("could not record stop message: %w", err)
	}
	return false, nil
}

// Release ends a session that never ran, without writing anything.
func (s *Session) Release() {
	c := s.ctrl
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[s.ChatID] == s {
		delete(c.active, s.ChatID)
	}
	s.cancel()
}

// Run executes work under the session's context and persists its result.
// An error from work is replaced by ErrorMessage. If the session was stopped
// meanwhile, the result is dropped.
func (s *Session) Run(work func(ctx context.Context) (Result, error)) Outcome {
	c := s.ctrl

	if ok, err := s.commit(); !ok {
		if err != nil {
			slog.Error("Failed to persist stop message", "chat_id", s.ChatID, "error", err)
		}
		return Outcome{SessionID: s.ID, State: Cancelled, Err: err}
	}

	c.mu.Lock()
	if s.state != Sending {
		c.mu.Unlock()
		return Outcome{SessionID: s.ID, State: s.state}
	}
	s.state = Streaming
	c.mu.Unlock()

	result, workErr := work(s.ctx)

	c.mu.Lock()
	if s.state == Cancelled {
		c.mu.Unlock()
		slog.Debug("Discarding late response of stopped session", "chat_id", s.ChatID, "session_id", s.ID)
		return Outcome{SessionID: s.ID, State: Cancelled, Err: context.Canceled}
	}
	final := Completed
	if workErr != nil {
		final = Errored
	}
	s.state = final
	if c.active[s.ChatID] == s {
		delete(c.active, s.ChatID)
	}
	c.mu.Unlock()
	defer s.cancel()

	if workErr != nil {
		slog.Error("Generation failed", "chat_id", s.ChatID, "session_id", s.ID, "error", workErr)
		result = Result{Content: ErrorMessage, Model: result.Model}
	}

	msg, err := c.rec.AppendAssistant(s.ctx, s.ChatID, result.Content, result.Model, result.Metadata)
	if err != nil {
		slog.Error("Failed to persist assistant message", "chat_id", s.ChatID, "error", err)
		return Outcome{SessionID: s.ID, State: final, Err: errors.Join(workErr, err)}
	}
	return Outcome{SessionID: s.ID, State: final, Message: msg, Err: workErr}
}

// Generate runs a plain chat inference. An attached image forces the vision
// model and direct-prompt mode: the image goes base64-encoded, without
// history, and an empty prompt becomes DefaultImagePrompt.
func (s *Session) Generate(req Request) Outcome {
	c := s.ctrl
	genReq := &proxy.GenerateRequest{
		Prompt:  req.Prompt,
		Model:   req.Model,
		BaseURL: req.BaseURL,
		History: req.History,
	}
	meta := model.MessageMetadata{Command: "chat"}

	if len(req.Image) > 0 {
		genReq.Model = c.visionModel
		genReq.Image = base64.StdEncoding.EncodeToString(req.Image)
		genReq.History = nil
		if genReq.Prompt == "" {
			genReq.Prompt = DefaultImagePrompt
		}
		meta.Vision = true
	}

	return s.Run(func(ctx context.Context) (Result, error) {
		answer, err := c.gen.Generate(ctx, genReq)
		if err != nil {
			return Result{Model: genReq.Model}, err
		}
		if answer == "" {
			answer = NoResponseMessage
		}
		return Result{Content: answer, Model: genReq.Model, Metadata: meta}, nil
	})
}
