package service

import (
	"context"
	"sync"
	"time"

	"github.com/sillogic-labs/sillogic/internal/domain"
)

// Script describes how the scripted invoker answers for one model.
type Script struct {
	Chunks []string
	Delay  time.Duration   // pause before each chunk
	Err    error           // returned after the chunks (terminal stream error)
	Gate   <-chan struct{} // when set, the stream does not finish until released
}

// ScriptedInvoker is a deterministic ModelInvoker used in tests and as the
// offline backend of the demo binary. Unscripted models echo the prompt.
type ScriptedInvoker struct {
	mu       sync.Mutex
	scripts  map[domain.ModelID]Script
	requests []domain.GenerateRequest
}

func NewScriptedInvoker() *ScriptedInvoker {
	return &ScriptedInvoker{scripts: make(map[domain.ModelID]Script)}
}

func (s *ScriptedInvoker) SetScript(model domain.ModelID, script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[model] = script
}

// Requests returns a copy of every request received, in arrival order.
func (s *ScriptedInvoker) Requests() []domain.GenerateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.GenerateRequest(nil), s.requests...)
}

func (s *ScriptedInvoker) StreamMessage(ctx context.Context, req domain.GenerateRequest, onChunk func(string)) error {
	s.mu.Lock()
	script, ok := s.scripts[req.Model]
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if !ok {
		script = Script{Chunks: []string{
			"[" + req.Model.DisplayName() + "] ",
			"Acknowledged: ",
			req.Prompt,
		}}
	}

	for _, chunk := range script.Chunks {
		if script.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(script.Delay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		onChunk(chunk)
	}

	if script.Gate != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-script.Gate:
		}
	}
	return script.Err
}
