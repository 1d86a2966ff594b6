package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sillogic-labs/sillogic/internal/domain"
)

// ChunkEvent notifies a UI that a model produced streamed text.
type ChunkEvent struct {
	SessionID string
	MessageID string
	Model     domain.ModelID
	Text      string
}

type EngineOption func(*Engine)

// WithChunkListener registers a callback fired for every streamed chunk.
// The callback runs on the streaming goroutine and must not block.
func WithChunkListener(fn func(ChunkEvent)) EngineOption {
	return func(e *Engine) { e.onChunk = fn }
}

// WithCallTimeout bounds each per-model call. Zero disables the timeout.
func WithCallTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

// WithTemperature sets the sampling temperature passed to backends.
func WithTemperature(t float64) EngineOption {
	return func(e *Engine) { e.temperature = &t }
}

// WithSearch enables the search tool on backend calls.
func WithSearch(enabled bool) EngineOption {
	return func(e *Engine) { e.enableSearch = enabled }
}

// Engine executes conversational turns: it fans a user turn out to every
// active model of a session concurrently and merges the streamed output back
// into the session's pending cluster message. One engine serves all sessions;
// at most one turn per session is in flight at a time.
type Engine struct {
	registry     *Registry
	invoker      domain.ModelInvoker
	timeout      time.Duration
	temperature  *float64
	enableSearch bool
	onChunk      func(ChunkEvent)

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

func NewEngine(registry *Registry, invoker domain.ModelInvoker, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		invoker:  invoker,
		inflight: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit executes one turn: appends the user message and a placeholder
// cluster message, then streams every active model concurrently. It returns
// a copy of the completed cluster message only after all model calls have
// settled; observers see partial text incrementally before that.
func (e *Engine) Submit(ctx context.Context, sessionID, prompt string, files []domain.Attachment) (*domain.Message, error) {
	return e.submit(ctx, sessionID, prompt, files, "")
}

// EditAndRegenerate truncates the session to just before messageID (the
// message and everything after it are dropped, not archived) and submits
// newText against the truncated history.
func (e *Engine) EditAndRegenerate(ctx context.Context, sessionID, messageID, newText string) (*domain.Message, error) {
	if messageID == "" {
		return nil, domain.ErrMessageNotFound
	}
	return e.submit(ctx, sessionID, newText, nil, messageID)
}

// CancelTurn aborts the in-flight turn for a session, if any. Aborted model
// slots finalize with their error marker.
func (e *Engine) CancelTurn(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cancel, ok := e.inflight[sessionID]
	if ok {
		cancel()
	}
	return ok
}

// InFlight reports whether a turn is currently running for the session.
func (e *Engine) InFlight(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inflight[sessionID]
	return ok
}

func (e *Engine) submit(ctx context.Context, sessionID, prompt string, files []domain.Attachment, truncateAt string) (*domain.Message, error) {
	if strings.TrimSpace(prompt) == "" && len(files) == 0 {
		return nil, domain.ErrEmptyPrompt
	}

	// Convert attachments before touching session state: an unreadable file
	// fails the whole submission rather than silently going missing.
	parts, err := convertAll(files)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if _, busy := e.inflight[sessionID]; busy {
		e.mu.Unlock()
		return nil, domain.ErrTurnInFlight
	}
	turnCtx, cancel := context.WithCancel(ctx)
	e.inflight[sessionID] = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		cancel()
		delete(e.inflight, sessionID)
		e.mu.Unlock()
	}()

	var (
		history       []*domain.Message
		models        []domain.ModelID
		auxFiles      []domain.Attachment
		field         domain.ResearchField
		task          domain.ResearchTask
		placeholderID string
	)
	err = e.registry.Update(sessionID, func(s *domain.Session) error {
		if truncateAt != "" {
			if !s.TruncateBefore(truncateAt) {
				return domain.ErrMessageNotFound
			}
		}

		history = make([]*domain.Message, 0, len(s.Messages))
		for _, m := range s.Messages {
			history = append(history, m.Clone())
		}

		user := domain.NewUserMessage(prompt + attachmentManifest(files))
		s.AppendMessage(user)

		cluster := domain.NewClusterMessage(s.ActiveModels)
		s.AppendMessage(cluster)

		placeholderID = cluster.ID
		models = append([]domain.ModelID(nil), s.ActiveModels...)
		field, task = s.Field, s.Task
		for _, a := range s.Attachments {
			auxFiles = append(auxFiles, a.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Session attachments were validated on ingest; a stale corrupt entry
	// degrades to an empty auxiliary set instead of failing the turn.
	aux, auxErr := convertAll(auxFiles)
	if auxErr != nil {
		slog.Warn("session attachments skipped", "session_id", sessionID, "error", auxErr)
		aux = nil
	}

	params := domain.GenerateParams{
		SystemInstruction: domain.SystemInstruction(field, task),
		Temperature:       e.temperature,
		EnableSearch:      e.enableSearch,
	}

	g := new(errgroup.Group)
	for _, model := range models {
		model := model
		g.Go(func() error {
			e.runModel(turnCtx, sessionID, placeholderID, domain.GenerateRequest{
				Model:     model,
				History:   buildTurns(history, model),
				Prompt:    prompt,
				Parts:     parts,
				Auxiliary: aux,
				Params:    params,
			})
			return nil
		})
	}
	// Per-model failures are folded into their slots; the join never fails.
	_ = g.Wait()

	var result *domain.Message
	err = e.registry.Update(sessionID, func(s *domain.Session) error {
		idx := s.MessageIndex(placeholderID)
		if idx < 0 {
			return domain.ErrMessageNotFound
		}
		s.Touch()
		result = s.Messages[idx].Clone()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("finalize turn: %w", err)
	}
	return result, nil
}

// runModel drives one model's stream and merges its output into the slot.
// Errors are terminal for the slot and never propagate to siblings.
func (e *Engine) runModel(ctx context.Context, sessionID, messageID string, req domain.GenerateRequest) {
	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	err := e.invoker.StreamMessage(callCtx, req, func(text string) {
		if text == "" {
			return
		}
		e.mergeChunk(sessionID, messageID, req.Model, text)
		if e.onChunk != nil {
			e.onChunk(ChunkEvent{
				SessionID: sessionID,
				MessageID: messageID,
				Model:     req.Model,
				Text:      text,
			})
		}
	})

	finalErr := e.registry.Update(sessionID, func(s *domain.Session) error {
		idx := s.MessageIndex(messageID)
		if idx < 0 {
			return domain.ErrMessageNotFound
		}
		slot := s.Messages[idx].Response(req.Model)
		if slot == nil {
			return domain.ErrModelNotFound
		}
		if err != nil {
			slot.AppendChunk(errorMarker(req.Model))
		}
		slot.Finish()
		return nil
	})
	if err != nil {
		slog.Error("model stream failed", "session_id", sessionID, "model", req.Model, "error", err)
	}
	if finalErr != nil {
		slog.Error("finalize model slot failed", "session_id", sessionID, "model", req.Model, "error", finalErr)
	}
}

// mergeChunk appends text to one model's slot. Chunk merges skip the
// snapshot write; the turn persists on each slot finalization instead.
func (e *Engine) mergeChunk(sessionID, messageID string, model domain.ModelID, text string) {
	err := e.registry.UpdateEphemeral(sessionID, func(s *domain.Session) error {
		idx := s.MessageIndex(messageID)
		if idx < 0 {
			return domain.ErrMessageNotFound
		}
		if slot := s.Messages[idx].Response(model); slot != nil {
			slot.AppendChunk(text)
		}
		return nil
	})
	if err != nil {
		slog.Warn("chunk merge dropped", "session_id", sessionID, "model", model, "error", err)
	}
}

// buildTurns reconstructs one model's view of the prior conversation. For a
// cluster message the model's own slot text is used; a model that was added
// mid-conversation has no slot in older turns and borrows the first sibling
// response so it is never shown an empty turn.
func buildTurns(history []*domain.Message, model domain.ModelID) []domain.Turn {
	turns := make([]domain.Turn, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case domain.RoleUser:
			if msg.Content != "" {
				turns = append(turns, domain.Turn{Role: domain.RoleUser, Text: msg.Content})
			}
		case domain.RoleAssistant:
			text := msg.Content
			if msg.IsCluster() {
				if slot := msg.Response(model); slot != nil {
					text = slot.Text
				} else {
					text = msg.Responses[0].Text
				}
			}
			if text != "" {
				turns = append(turns, domain.Turn{Role: domain.RoleAssistant, Text: text})
			}
		}
	}
	return turns
}

func errorMarker(model domain.ModelID) string {
	return fmt.Sprintf("\n\n[System Error: %s connection failed. Verify API key or Model Availability.]", model)
}
