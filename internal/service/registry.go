package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sillogic-labs/sillogic/internal/config"
	"github.com/sillogic-labs/sillogic/internal/domain"
	"github.com/sillogic-labs/sillogic/internal/repository"
)

// ambientContext is the field/task/model configuration new sessions inherit.
// Selecting a session restores its configuration as the ambient one, so
// leaving and returning to a workspace resumes where it left off.
type ambientContext struct {
	models []domain.ModelID
	field  domain.ResearchField
	task   domain.ResearchTask
}

// Registry owns the collection of sessions and is the sole writer of the
// persisted snapshot. All mutation goes through its lock; the snapshot write
// happens synchronously with the mutation that triggered it.
type Registry struct {
	mu       sync.RWMutex
	store    repository.SnapshotStore
	sessions map[string]*domain.Session
	selected string
	ambient  ambientContext
}

type snapshotEnvelope struct {
	Version  int               `json:"version"`
	SavedAt  time.Time         `json:"saved_at"`
	Selected string            `json:"selected,omitempty"`
	Sessions []*domain.Session `json:"sessions"`
}

// NewRegistry restores the session collection from the store. A missing,
// corrupt or future-versioned snapshot falls back to an empty collection —
// restore failures must never prevent startup.
func NewRegistry(store repository.SnapshotStore, models []domain.ModelID, field domain.ResearchField, task domain.ResearchTask) *Registry {
	r := &Registry{
		store:    store,
		sessions: make(map[string]*domain.Session),
		ambient: ambientContext{
			models: append([]domain.ModelID(nil), models...),
			field:  field,
			task:   task,
		},
	}
	r.restore()
	return r
}

func (r *Registry) restore() {
	data, err := r.store.Load(context.Background())
	if err != nil {
		slog.Warn("snapshot load failed, starting empty", "error", err)
		return
	}
	if data == nil {
		return
	}

	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("snapshot corrupt, starting empty", "error", err)
		return
	}
	if env.Version > config.SnapshotVersion {
		slog.Warn("snapshot version newer than supported, starting empty",
			"version", env.Version, "supported", config.SnapshotVersion)
		return
	}

	for _, s := range env.Sessions {
		if s == nil || s.ID == "" {
			continue
		}
		r.sessions[s.ID] = s
	}
	if _, ok := r.sessions[env.Selected]; ok {
		r.selected = env.Selected
	}
	slog.Info("snapshot restored", "sessions", len(r.sessions))
}

// persistLocked serializes the collection and writes it to the store.
// Failures are logged and swallowed: the in-memory state stays authoritative
// for the rest of the process lifetime.
func (r *Registry) persistLocked() {
	env := snapshotEnvelope{
		Version:  config.SnapshotVersion,
		SavedAt:  time.Now(),
		Selected: r.selected,
		Sessions: make([]*domain.Session, 0, len(r.sessions)),
	}
	for _, s := range r.sessions {
		env.Sessions = append(env.Sessions, s)
	}
	sort.Slice(env.Sessions, func(i, j int) bool {
		return env.Sessions[i].CreatedAt.Before(env.Sessions[j].CreatedAt)
	})

	data, err := json.Marshal(env)
	if err != nil {
		slog.Warn("snapshot marshal failed", "error", err)
		return
	}
	if err := r.store.Save(context.Background(), data); err != nil {
		slog.Warn("snapshot write failed", "error", err)
	}
}

// Create allocates a new session from the ambient context, seeds it with the
// workspace welcome message and selects it.
func (r *Registry) Create() *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := domain.NewSession(r.ambient.models, r.ambient.field, r.ambient.task)
	welcome := domain.NewAssistantMessage(domain.WelcomeMessage(s.Field, s.Task, s.ActiveModels))
	s.Messages = append(s.Messages, welcome)

	r.sessions[s.ID] = s
	r.selected = s.ID
	r.persistLocked()

	slog.Info("session created", "session_id", s.ID, "models", s.ActiveModels)
	return s.Clone()
}

// Get returns a deep copy of a session. Callers never receive a live pointer
// into the registry.
func (r *Registry) Get(id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

// Select makes a session current and restores its field/task/model context
// as the ambient context for sessions created afterward.
func (r *Registry) Select(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	r.selected = id
	r.ambient = ambientContext{
		models: append([]domain.ModelID(nil), s.ActiveModels...),
		field:  s.Field,
		task:   s.Task,
	}
	r.persistLocked()
	return nil
}

// Selected returns the current session id, or "" when none is selected.
func (r *Registry) Selected() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected
}

// SelectedSession returns a copy of the current session.
func (r *Registry) SelectedSession() (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[r.selected]
	if !ok {
		return nil, domain.ErrNoSessionSelected
	}
	return s.Clone(), nil
}

// Delete removes a session. Deleting the selected session leaves no
// selection; the caller must create or pick another.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(r.sessions, id)
	if r.selected == id {
		r.selected = ""
	}
	r.persistLocked()
	return nil
}

// ClearAll empties the collection and wipes the persisted snapshot.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions = make(map[string]*domain.Session)
	r.selected = ""
	if err := r.store.Clear(context.Background()); err != nil {
		slog.Warn("snapshot clear failed", "error", err)
	}
}

// List returns deep copies of all sessions, most recent activity first.
func (r *Registry) List() []*domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out
}

// Fork creates an independent session from a copy of the source's history up
// to and including messageID, inheriting the source's active model set. Only
// single-level forking is supported: forking a fork is rejected.
func (r *Registry) Fork(sourceID, messageID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.sessions[sourceID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if src.ForkOf != "" {
		return nil, domain.ErrForkDepth
	}
	idx := src.MessageIndex(messageID)
	if idx < 0 {
		return nil, domain.ErrMessageNotFound
	}

	fork := src.Clone()
	fork.ID = uuid.NewString()
	fork.Messages = fork.Messages[:idx+1]
	fork.ForkOf = sourceID
	fork.CreatedAt = time.Now()
	fork.LastActivityAt = fork.CreatedAt

	r.sessions[fork.ID] = fork
	r.persistLocked()

	slog.Info("session forked", "source_id", sourceID, "fork_id", fork.ID)
	return fork.Clone(), nil
}

// Update runs fn on the live session under the registry lock and persists
// the result. fn must not block or call back into the registry.
func (r *Registry) Update(id string, fn func(*domain.Session) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if err := fn(s); err != nil {
		return err
	}
	r.persistLocked()
	return nil
}

// UpdateEphemeral is Update without the snapshot write. Used for per-chunk
// merges, which would otherwise serialize the whole collection on every
// token; the turn's enclosing mutations persist the final state.
func (r *Registry) UpdateEphemeral(id string, fn func(*domain.Session) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	return fn(s)
}

// AddModel adds a model to a session's active set. Violating the 1..3 bound
// or duplicating is a no-op, reported via the return value.
func (r *Registry) AddModel(id string, model domain.ModelID) (bool, error) {
	var added bool
	err := r.Update(id, func(s *domain.Session) error {
		added = s.AddModel(model)
		return nil
	})
	return added, err
}

// RemoveModel removes a model from a session's active set. Removing the last
// model is a no-op.
func (r *Registry) RemoveModel(id string, model domain.ModelID) (bool, error) {
	var removed bool
	err := r.Update(id, func(s *domain.Session) error {
		removed = s.RemoveModel(model)
		return nil
	})
	return removed, err
}

// AddAttachment adds a persistent reference file to the session's knowledge
// base. The attachment is validated by conversion before it is accepted.
func (r *Registry) AddAttachment(id string, att domain.Attachment) error {
	if _, err := ConvertAttachment(att); err != nil {
		return fmt.Errorf("attachment %q: %w", att.Name, err)
	}
	return r.Update(id, func(s *domain.Session) error {
		s.Attachments = append(s.Attachments, att.Clone())
		return nil
	})
}
