package domain

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ModelID identifies a model backend. The supported set is closed: history
// reconstruction, display names and the invoker all key off these values.
type ModelID string

const (
	ModelGeminiFlash     ModelID = "gemini-2.5-flash"
	ModelGeminiFlashLite ModelID = "gemini-2.5-flash-lite"
	ModelGeminiPro       ModelID = "gemini-3-pro-preview"
	ModelGeminiThinking  ModelID = "gemini-3-pro-preview-thinking"
	ModelGeminiExp       ModelID = "gemini-exp-1206"
	ModelLearnLM         ModelID = "learnlm-1.5-pro-experimental"
	ModelGPT4o           ModelID = "gpt-4o"
	ModelO1Preview       ModelID = "o1-preview"
	ModelClaudeSonnet    ModelID = "claude-3-5-sonnet"
	ModelGroqLlama3      ModelID = "groq-llama-3-70b"
	ModelDeepSeekV3      ModelID = "deepseek-v3"
	ModelDeepSeekR1      ModelID = "deepseek-r1"
)

var modelNames = map[ModelID]string{
	ModelGeminiFlash:     "Gemini 2.5 Flash",
	ModelGeminiFlashLite: "Gemini 2.5 Flash Lite",
	ModelGeminiPro:       "Gemini 3.0 Pro",
	ModelGeminiThinking:  "Gemini 3.0 Thinking",
	ModelGeminiExp:       "Gemini Experimental",
	ModelLearnLM:         "LearnLM 1.5 Pro",
	ModelGPT4o:           "GPT-4o",
	ModelO1Preview:       "o1-preview",
	ModelClaudeSonnet:    "Claude 3.5 Sonnet",
	ModelGroqLlama3:      "Llama 3 70B (Groq)",
	ModelDeepSeekV3:      "DeepSeek V3",
	ModelDeepSeekR1:      "DeepSeek R1",
}

// DisplayName returns the human label for a model id. Unknown ids fall back
// to the raw id string.
func (m ModelID) DisplayName() string {
	if name, ok := modelNames[m]; ok {
		return name
	}
	return string(m)
}

// Valid reports whether the id belongs to the supported catalog.
func (m ModelID) Valid() bool {
	_, ok := modelNames[m]
	return ok
}

// SupportedModels returns the closed catalog in a stable order.
func SupportedModels() []ModelID {
	return []ModelID{
		ModelGeminiFlash,
		ModelGeminiFlashLite,
		ModelGeminiPro,
		ModelGeminiThinking,
		ModelGeminiExp,
		ModelLearnLM,
		ModelGPT4o,
		ModelO1Preview,
		ModelClaudeSonnet,
		ModelGroqLlama3,
		ModelDeepSeekV3,
		ModelDeepSeekR1,
	}
}

// ResearchField is the scientific domain a workspace is scoped to.
type ResearchField string

const (
	FieldPhysical    ResearchField = "Physical Sciences"
	FieldLife        ResearchField = "Life Sciences"
	FieldFormal      ResearchField = "Formal Sciences"
	FieldEngineering ResearchField = "Engineering & Technology"
	FieldSocial      ResearchField = "Social Sciences & Humanities"
	FieldGeneral     ResearchField = "General Research"
)

// ResearchTask is the kind of assistance requested within a field.
type ResearchTask string

const (
	TaskDeepSearch     ResearchTask = "Deep Literature Review"
	TaskPaperReading   ResearchTask = "Paper Interpretation & Summary"
	TaskPaperEditing   ResearchTask = "Academic Writing & Polishing"
	TaskDataAnalysis   ResearchTask = "Data Analysis & Visualization"
	TaskIdeaGeneration ResearchTask = "Hypothesis Generation"
)
