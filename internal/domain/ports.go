package domain

import "context"

// Turn is one entry of a model's reconstructed view of the conversation.
type Turn struct {
	Role Role
	Text string
}

// GenerateParams are the generation knobs passed through to a backend.
type GenerateParams struct {
	SystemInstruction string
	Temperature       *float64
	TopP              *float64
	EnableSearch      bool
}

// GenerateRequest carries everything a backend needs for one model call.
type GenerateRequest struct {
	Model     ModelID
	History   []Turn
	Prompt    string
	Parts     []Part // converted per-turn attachments
	Auxiliary []Part // session-scoped reference material
	Params    GenerateParams
}

// ModelInvoker abstracts "send a conversation history plus a new turn to a
// named model and stream back text". Implementations must tolerate an empty
// history (first turn) and stop promptly when ctx is cancelled. Whether the
// backend is one vendor or many is invisible to callers.
type ModelInvoker interface {
	StreamMessage(ctx context.Context, req GenerateRequest, onChunk func(text string)) error
}

// ModelDirectory lists the models a backend can serve, with pricing.
type ModelDirectory interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
	GetModel(ctx context.Context, id ModelID) (*ModelInfo, error)
}
