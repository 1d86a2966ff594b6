package domain

import "github.com/shopspring/decimal"

// ModelInfo describes a backend model as reported by the provider listing.
type ModelInfo struct {
	ID              ModelID
	Name            string
	Description     string
	PromptPrice     decimal.Decimal // per 1M tokens
	CompletionPrice decimal.Decimal // per 1M tokens
	ContextLength   int
	Capabilities    ModelCapabilities
}

type ModelCapabilities struct {
	Vision          bool
	Audio           bool
	ImageGeneration bool
	Files           bool
}

func (m *ModelInfo) IsFree() bool {
	return m.PromptPrice.IsZero() && m.CompletionPrice.IsZero()
}
