package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sillogic-labs/sillogic/internal/config"
	"github.com/sillogic-labs/sillogic/internal/domain"
)

// OpenRouterService streams chat completions through OpenRouter, which
// routes each model id to its real vendor. It implements both the invoker
// and the model directory.
type OpenRouterService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *ModelsCache
}

func NewOpenRouterService(apiKey string) *OpenRouterService {
	return &OpenRouterService{
		apiKey:  apiKey,
		baseURL: "https://openrouter.ai/api/v1",
		// Per-call deadlines come from the engine's context; no client
		// timeout that would cut long streams short.
		httpClient: &http.Client{},
		cache:      NewModelsCache(config.ModelCacheDuration),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
	File     *filePart     `json:"file,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

type filePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type streamDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamMessage sends the reconstructed history plus the new turn and feeds
// SSE deltas to onChunk as they arrive.
func (s *OpenRouterService) StreamMessage(ctx context.Context, req domain.GenerateRequest, onChunk func(string)) error {
	temperature := req.Params.Temperature
	// OpenRouter rejects a temperature parameter on Gemini routes.
	if strings.Contains(strings.ToLower(string(req.Model)), "gemini") {
		temperature = nil
	}

	messages := make([]chatMessage, 0, len(req.History)+2)
	if req.Params.SystemInstruction != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.Params.SystemInstruction})
	}
	for _, turn := range req.History {
		role := "user"
		if turn.Role == domain.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: buildUserContent(req)})

	model := string(req.Model)
	// The ":online" suffix routes the call through OpenRouter's web search.
	if req.Params.EnableSearch {
		model += ":online"
	}

	payload, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		TopP:        req.Params.TopP,
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited by OpenRouter (429)")
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("OpenRouter service unavailable (503)")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chat request failed (%d): %s", resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}
		var delta streamDelta
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			continue
		}
		for _, c := range delta.Choices {
			if c.Delta.Content != "" {
				onChunk(c.Delta.Content)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

// buildUserContent assembles the final user message: converted attachments
// first (session-scoped reference material, then per-turn files), then the
// prompt text — mirroring the part ordering of the upstream API.
func buildUserContent(req domain.GenerateRequest) any {
	if len(req.Parts) == 0 && len(req.Auxiliary) == 0 {
		return req.Prompt
	}

	parts := make([]contentPart, 0, len(req.Parts)+len(req.Auxiliary)+1)
	text := req.Prompt
	for _, group := range [][]domain.Part{req.Auxiliary, req.Parts} {
		for _, p := range group {
			switch {
			case p.Text != "":
				text += p.Text
			case p.MIMEType == "application/pdf":
				parts = append(parts, contentPart{
					Type: "file",
					File: &filePart{
						Filename: p.Name,
						FileData: "data:application/pdf;base64," + p.InlineData,
					},
				})
			default:
				parts = append(parts, contentPart{
					Type:     "image_url",
					ImageURL: &imageURLPart{URL: "data:" + p.MIMEType + ";base64," + p.InlineData},
				})
			}
		}
	}
	if text != "" {
		parts = append(parts, contentPart{Type: "text", Text: text})
	}
	return parts
}

// ListModels fetches the provider catalog, filtered to the supported model
// set, with per-1M-token prices.
func (s *OpenRouterService) ListModels(ctx context.Context) ([]domain.ModelInfo, error) {
	if cached := s.cache.Get(); cached != nil {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var result struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Pricing     struct {
				Prompt     string `json:"prompt"`
				Completion string `json:"completion"`
			} `json:"pricing"`
			ContextLength int `json:"context_length"`
			TopProvider   struct {
				ContextLength int `json:"context_length"`
			} `json:"top_provider"`
			Architecture struct {
				Modality string `json:"modality"`
			} `json:"architecture"`
		} `json:"data"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse models: %w", err)
	}

	perMillion := decimal.NewFromInt(1_000_000)
	models := make([]domain.ModelInfo, 0, len(result.Data))
	for _, m := range result.Data {
		id := domain.ModelID(m.ID)
		if !id.Valid() {
			continue
		}

		// Prices from OpenRouter are per token, convert to per 1M tokens
		promptPrice, err := decimal.NewFromString(m.Pricing.Prompt)
		if err != nil {
			promptPrice = decimal.Zero
		}
		completionPrice, err := decimal.NewFromString(m.Pricing.Completion)
		if err != nil {
			completionPrice = decimal.Zero
		}

		ctxLen := m.ContextLength
		if m.TopProvider.ContextLength > 0 {
			ctxLen = m.TopProvider.ContextLength
		}

		models = append(models, domain.ModelInfo{
			ID:              id,
			Name:            m.Name,
			Description:     m.Description,
			PromptPrice:     promptPrice.Mul(perMillion),
			CompletionPrice: completionPrice.Mul(perMillion),
			ContextLength:   ctxLen,
			Capabilities:    detectCapabilities(m.ID, m.Architecture.Modality),
		})
	}

	s.cache.Set(models)
	return models, nil
}

func (s *OpenRouterService) GetModel(ctx context.Context, id domain.ModelID) (*domain.ModelInfo, error) {
	models, err := s.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range models {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, domain.ErrModelNotFound
}

func detectCapabilities(modelID, modality string) domain.ModelCapabilities {
	id := strings.ToLower(modelID)
	caps := domain.ModelCapabilities{}

	// Vision detection
	if strings.Contains(id, "vision") || strings.Contains(id, "gpt-4o") ||
		strings.Contains(id, "claude-3") || strings.Contains(id, "gemini") ||
		strings.Contains(id, "llava") || strings.Contains(modality, "image") {
		caps.Vision = true
	}

	// Audio detection
	if strings.Contains(id, "audio") || strings.Contains(modality, "audio") {
		caps.Audio = true
	}

	// Image generation
	if strings.Contains(id, "dall-e") || strings.Contains(id, "stable-diffusion") ||
		strings.Contains(id, "flux") || strings.Contains(id, "imagen") {
		caps.ImageGeneration = true
	}

	// File support (vision models generally support files)
	if caps.Vision {
		caps.Files = true
	}

	return caps
}
