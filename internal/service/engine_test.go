package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sillogic-labs/sillogic/internal/domain"
	"github.com/sillogic-labs/sillogic/internal/repository"
	"github.com/sillogic-labs/sillogic/internal/service"
)

func newTestEngine(t *testing.T, models []domain.ModelID, opts ...service.EngineOption) (*service.Engine, *service.Registry, *service.ScriptedInvoker, string) {
	t.Helper()

	registry := service.NewRegistry(repository.NewMemoryStore(), models, domain.FieldGeneral, domain.TaskDeepSearch)
	invoker := service.NewScriptedInvoker()
	engine := service.NewEngine(registry, invoker, opts...)
	session := registry.Create()
	return engine, registry, invoker, session.ID
}

func lastMessage(t *testing.T, registry *service.Registry, sessionID string) *domain.Message {
	t.Helper()

	s, err := registry.Get(sessionID)
	require.NoError(t, err)
	require.NotEmpty(t, s.Messages)
	return s.Messages[len(s.Messages)-1]
}

func TestSubmitFansOutToAllActiveModels(t *testing.T) {
	models := []domain.ModelID{domain.ModelGeminiFlash, domain.ModelGPT4o, domain.ModelClaudeSonnet}
	engine, registry, invoker, sessionID := newTestEngine(t, models)

	invoker.SetScript(domain.ModelGeminiFlash, service.Script{Chunks: []string{"answer from flash"}})
	invoker.SetScript(domain.ModelGPT4o, service.Script{Chunks: []string{"answer ", "from ", "gpt"}})
	invoker.SetScript(domain.ModelClaudeSonnet, service.Script{Chunks: []string{"answer from claude"}})

	msg, err := engine.Submit(context.Background(), sessionID, "compare notes", nil)
	require.NoError(t, err)

	require.Len(t, msg.Responses, 3)
	assert.Equal(t, "answer from flash", msg.Response(domain.ModelGeminiFlash).Text)
	assert.Equal(t, "answer from gpt", msg.Response(domain.ModelGPT4o).Text)
	assert.Equal(t, "answer from claude", msg.Response(domain.ModelClaudeSonnet).Text)
	assert.True(t, msg.Completed())

	require.Len(t, invoker.Requests(), 3)

	s, err := registry.Get(sessionID)
	require.NoError(t, err)
	assert.Equal(t, "compare notes", s.Title)
}

func TestSubmitSingleModel(t *testing.T) {
	engine, _, invoker, sessionID := newTestEngine(t, []domain.ModelID{domain.ModelGeminiFlash})
	invoker.SetScript(domain.ModelGeminiFlash, service.Script{Chunks: []string{"solo"}})

	msg, err := engine.Submit(context.Background(), sessionID, "hi", nil)
	require.NoError(t, err)
	require.Len(t, msg.Responses, 1)
	assert.Equal(t, "solo", msg.Responses[0].Text)
	assert.True(t, msg.Completed())
}

func TestModelsCompleteIndependently(t *testing.T) {
	models := []domain.ModelID{domain.ModelGeminiFlash, domain.ModelGPT4o}
	engine, registry, invoker, sessionID := newTestEngine(t, models)

	gate := make(chan struct{})
	invoker.SetScript(domain.ModelGeminiFlash, service.Script{Chunks: []string{"fast answer"}})
	invoker.SetScript(domain.ModelGPT4o, service.Script{Chunks: []string{"slow answer"}, Gate: gate})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = engine.Submit(context.Background(), sessionID, "race", nil)
	}()

	// The fast model finalizes while the slow one is still streaming.
	require.Eventually(t, func() bool {
		msg := lastMessage(t, registry, sessionID)
		if !msg.IsCluster() {
			return false
		}
		fast := msg.Response(domain.ModelGeminiFlash)
		return fast != nil && fast.Done
	}, time.Second, 5*time.Millisecond)

	msg := lastMessage(t, registry, sessionID)
	slow := msg.Response(domain.ModelGPT4o)
	require.NotNil(t, slow)
	assert.False(t, slow.Done)
	assert.False(t, msg.Completed())

	close(gate)
	<-done

	msg = lastMessage(t, registry, sessionID)
	assert.True(t, msg.Completed())
	assert.Equal(t, "slow answer", msg.Response(domain.ModelGPT4o).Text)
}

func TestLateModelBorrowsSiblingHistory(t *testing.T) {
	engine, registry, invoker, sessionID := newTestEngine(t, []domain.ModelID{domain.ModelGeminiFlash})
	invoker.SetScript(domain.ModelGeminiFlash, service.Script{Chunks: []string{"alpha answer"}})
	invoker.SetScript(domain.ModelGPT4o, service.Script{Chunks: []string{"beta answer"}})

	_, err := engine.Submit(context.Background(), sessionID, "first question", nil)
	require.NoError(t, err)

	added, err := registry.AddModel(sessionID, domain.ModelGPT4o)
	require.NoError(t, err)
	require.True(t, added)

	_, err = engine.Submit(context.Background(), sessionID, "second question", nil)
	require.NoError(t, err)

	var lateReq *domain.GenerateRequest
	for _, req := range invoker.Requests() {
		if req.Model == domain.ModelGPT4o {
			lateReq = &req
			break
		}
	}
	require.NotNil(t, lateReq, "the added model must have been called")

	// The new model never answered the first turn; its history borrows the
	// sibling's response instead of showing an empty assistant turn.
	assert.Contains(t, lateReq.History, domain.Turn{Role: domain.RoleUser, Text: "first question"})
	assert.Contains(t, lateReq.History, domain.Turn{Role: domain.RoleAssistant, Text: "alpha answer"})
	for _, turn := range lateReq.History {
		assert.NotEmpty(t, turn.Text, "empty turns must be skipped")
	}
}

func TestEditAndRegenerate(t *testing.T) {
	engine, registry, invoker, sessionID := newTestEngine(t, []domain.ModelID{domain.ModelGeminiFlash})
	invoker.SetScript(domain.ModelGeminiFlash, service.Script{Chunks: []string{"answer"}})

	_, err := engine.Submit(context.Background(), sessionID, "first question", nil)
	require.NoError(t, err)
	_, err = engine.Submit(context.Background(), sessionID, "second question", nil)
	require.NoError(t, err)

	s, err := registry.Get(sessionID)
	require.NoError(t, err)
	require.Len(t, s.Messages, 5) // welcome, q1, cluster, q2, cluster
	editTarget := s.Messages[3]
	require.Equal(t, domain.RoleUser, editTarget.Role)
	droppedCluster := s.Messages[4].ID

	msg, err := engine.EditAndRegenerate(context.Background(), sessionID, editTarget.ID, "revised question")
	require.NoError(t, err)
	assert.Equal(t, "answer", msg.Responses[0].Text)

	s, err = registry.Get(sessionID)
	require.NoError(t, err)
	require.Len(t, s.Messages, 5)
	assert.Equal(t, "revised question", s.Messages[3].Content)
	assert.NotEqual(t, editTarget.ID, s.Messages[3].ID, "the edited turn is a new message")
	assert.Less(t, s.MessageIndex(droppedCluster), 0, "the regenerated-over cluster is dropped")
	assert.Equal(t, "first question", s.Title, "title stays bound to the first user message")
}

func TestEditAndRegenerateUnknownMessage(t *testing.T) {
	engine, _, _, sessionID := newTestEngine(t, []domain.ModelID{domain.ModelGeminiFlash})

	_, err := engine.EditAndRegenerate(context.Background(), sessionID, "no-such-id", "text")
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)

	_, err = engine.EditAndRegenerate(context.Background(), sessionID, "", "text")
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestPartialFailureIsContained(t *testing.T) {
	models := []domain.ModelID{domain.ModelGeminiFlash, domain.ModelGPT4o}
	engine, _, invoker, sessionID := newTestEngine(t, models)

	invoker.SetScript(domain.ModelGeminiFlash, service.Script{Chunks: []string{"X is", " a thing."}})
	invoker.SetScript(domain.ModelGPT4o, service.Script{
		Chunks: []string{"X represents a topological property"},
		Err:    errors.New("stream reset"),
	})

	msg, err := engine.Submit(context.Background(), sessionID, "what is X", nil)
	require.NoError(t, err, "one model failing must not fail the turn")

	healthy := msg.Response(domain.ModelGeminiFlash)
	require.NotNil(t, healthy)
	assert.Equal(t, "X is a thing.", healthy.Text)
	assert.True(t, healthy.Done)

	failed := msg.Response(domain.ModelGPT4o)
	require.NotNil(t, failed)
	assert.Contains(t, failed.Text, "X represents a topological property", "partial output survives the failure")
	assert.Contains(t, failed.Text, "[System Error: gpt-4o connection failed. Verify API key or Model Availability.]")
	assert.True(t, failed.Done)
	assert.True(t, msg.Completed())
}

func TestRejectsConcurrentTurn(t *testing.T) {
	engine, _, invoker, sessionID := newTestEngine(t, []domain.ModelID{domain.ModelGeminiFlash})

	gate := make(chan struct{})
	invoker.SetScript(domain.ModelGeminiFlash, service.Script{Chunks: []string{"busy"}, Gate: gate})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = engine.Submit(context.Background(), sessionID, "long turn", nil)
	}()

	require.Eventually(t, func() bool {
		return engine.InFlight(sessionID)
	}, time.Second, 5*time.Millisecond)

	_, err := engine.Submit(context.Background(), sessionID, "impatient", nil)
	assert.ErrorIs(t, err, domain.ErrTurnInFlight)

	close(gate)
	<-done
	assert.False(t, engine.InFlight(sessionID))
}

func TestCancelTurn(t *testing.T) {
	engine, registry, invoker, sessionID := newTestEngine(t, []domain.ModelID{domain.ModelGeminiFlash})

	gate := make(chan struct{}) // never released, the turn only ends via cancel
	invoker.SetScript(domain.ModelGeminiFlash, service.Script{Chunks: []string{"partial out"}, Gate: gate})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = engine.Submit(context.Background(), sessionID, "cancel me", nil)
	}()

	require.Eventually(t, func() bool {
		return engine.InFlight(sessionID)
	}, time.Second, 5*time.Millisecond)

	assert.True(t, engine.CancelTurn(sessionID))
	<-done

	msg := lastMessage(t, registry, sessionID)
	slot := msg.Response(domain.ModelGeminiFlash)
	require.NotNil(t, slot)
	assert.True(t, slot.Done)
	assert.Contains(t, slot.Text, "partial out")
	assert.Contains(t, slot.Text, "[System Error:")

	assert.False(t, engine.CancelTurn(sessionID), "nothing left to cancel")
}

func TestEmptyPromptRejected(t *testing.T) {
	engine, registry, _, sessionID := newTestEngine(t, []domain.ModelID{domain.ModelGeminiFlash})

	before, err := registry.Get(sessionID)
	require.NoError(t, err)

	_, err = engine.Submit(context.Background(), sessionID, "   \n\t", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyPrompt)

	after, err := registry.Get(sessionID)
	require.NoError(t, err)
	assert.Len(t, after.Messages, len(before.Messages), "a rejected turn must not touch the session")
}

func TestAttachmentOnlySubmission(t *testing.T) {
	engine, registry, _, sessionID := newTestEngine(t, []domain.ModelID{domain.ModelGeminiFlash})

	files := []domain.Attachment{{Name: "notes.txt", MIMEType: "text/plain", Data: []byte("lab notes")}}
	_, err := engine.Submit(context.Background(), sessionID, "", files)
	require.NoError(t, err)

	s, err := registry.Get(sessionID)
	require.NoError(t, err)
	userMsg := s.Messages[len(s.Messages)-2]
	require.Equal(t, domain.RoleUser, userMsg.Role)
	assert.Contains(t, userMsg.Content, "[Attached: notes.txt]")
}

func TestUnreadableAttachmentFailsBeforeMutation(t *testing.T) {
	engine, registry, _, sessionID := newTestEngine(t, []domain.ModelID{domain.ModelGeminiFlash})

	before, err := registry.Get(sessionID)
	require.NoError(t, err)

	files := []domain.Attachment{{Name: "blob.bin", MIMEType: "application/octet-stream", Data: []byte{0xff, 0xfe, 0x00}}}
	_, err = engine.Submit(context.Background(), sessionID, "look at this", files)
	assert.ErrorIs(t, err, domain.ErrAttachmentUnreadable)

	after, err := registry.Get(sessionID)
	require.NoError(t, err)
	assert.Len(t, after.Messages, len(before.Messages))
}

func TestChunkListenerObservesStream(t *testing.T) {
	var (
		mu     sync.Mutex
		events []service.ChunkEvent
	)
	listener := service.WithChunkListener(func(ev service.ChunkEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	engine, _, invoker, sessionID := newTestEngine(t, []domain.ModelID{domain.ModelGeminiFlash}, listener)
	invoker.SetScript(domain.ModelGeminiFlash, service.Script{Chunks: []string{"one", "two", "three"}})

	msg, err := engine.Submit(context.Background(), sessionID, "stream it", nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3)
	var combined string
	for _, ev := range events {
		assert.Equal(t, sessionID, ev.SessionID)
		assert.Equal(t, msg.ID, ev.MessageID)
		assert.Equal(t, domain.ModelGeminiFlash, ev.Model)
		combined += ev.Text
	}
	assert.Equal(t, "onetwothree", combined)
}

func TestSystemInstructionFollowsSessionContext(t *testing.T) {
	registry := service.NewRegistry(repository.NewMemoryStore(),
		[]domain.ModelID{domain.ModelGeminiFlash}, domain.FieldPhysical, domain.TaskPaperReading)
	invoker := service.NewScriptedInvoker()
	engine := service.NewEngine(registry, invoker)
	sessionID := registry.Create().ID

	_, err := engine.Submit(context.Background(), sessionID, "survey the field", nil)
	require.NoError(t, err)

	reqs := invoker.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.SystemInstruction(domain.FieldPhysical, domain.TaskPaperReading), reqs[0].Params.SystemInstruction)
}
