// Package enrich calls the inference service to derive an emotional
// classification and a weekly plan from free-form reflection text.
//
// The client never fails: any transport error, timeout, or malformed
// response degrades to the static fallback payload, so a plan always
// reaches the user.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"sentientplanner.app/planner/internal/model"
)

// Analysis is the result of analyzing one reflection.
type Analysis struct {
	Emotion        string
	SentimentScore int
	WeeklyPlan     []model.DayEntry
	Fallback       bool
}

// Client produces an Analysis for reflection text. Implementations must not
// return errors for degraded dependencies; they substitute Fallback instead.
type Client interface {
	Analyze(ctx context.Context, text, apiKey string) Analysis
}

// Completer performs one structured chat completion and returns the raw JSON
// payload. Split out so the parsing/fallback logic is testable without the
// provider.
type Completer interface {
	Complete(ctx context.Context, apiKey, systemPrompt, userPrompt string) ([]byte, error)
}

const systemPrompt = `You are an empathetic planner. Analyze the user's reflection and determine their emotional state.

Your task:
1. Identify the core emotion in the text (e.g. "anxious", "hopeful", "stressed", "excited", "sad", "neutral")
2. Assign a sentiment score between 0 (most negative) and 100 (most positive)
3. Generate a pragmatic weekly plan of exactly 7 day entries tailored to their emotional needs

Make the weekly plan supportive and realistic based on their emotional state.`

// analysisPayload is the wire shape requested from the model.
type analysisPayload struct {
	Emotion        string           `json:"emotion"`
	SentimentScore int              `json:"sentiment_score"`
	WeeklyPlan     []model.DayEntry `json:"weekly_plan"`
}

type client struct {
	completer Completer
}

// New creates an enrichment client backed by the given completer.
func New(completer Completer) Client {
	return &client{completer: completer}
}

func (c *client) Analyze(ctx context.Context, text, apiKey string) Analysis {
	raw, err := c.completer.Complete(ctx, apiKey, systemPrompt, text)
	if err != nil {
		slog.WarnContext(ctx, "inference call failed, using fallback", "error", err)
		return Fallback()
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		slog.WarnContext(ctx, "inference response invalid, using fallback", "error", err)
		return Fallback()
	}

	slog.InfoContext(ctx, "inference analysis complete",
		"detected_emotion", analysis.Emotion,
		"sentiment_score", analysis.SentimentScore)
	return analysis
}

func parseAnalysis(raw []byte) (Analysis, error) {
	// Pointer fields so a structurally valid document with a missing
	// top-level field is still rejected.
	var payload struct {
		Emotion        *string           `json:"emotion"`
		SentimentScore *int              `json:"sentiment_score"`
		WeeklyPlan     *[]model.DayEntry `json:"weekly_plan"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Analysis{}, fmt.Errorf("unmarshal analysis: %w", err)
	}

	if payload.Emotion == nil || *payload.Emotion == "" {
		return Analysis{}, fmt.Errorf("missing required field: emotion")
	}
	if payload.SentimentScore == nil {
		return Analysis{}, fmt.Errorf("missing required field: sentiment_score")
	}
	if payload.WeeklyPlan == nil || len(*payload.WeeklyPlan) == 0 {
		return Analysis{}, fmt.Errorf("missing required field: weekly_plan")
	}

	score := *payload.SentimentScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Analysis{
		Emotion:        *payload.Emotion,
		SentimentScore: score,
		WeeklyPlan:     *payload.WeeklyPlan,
	}, nil
}

// OpenAICompleter calls an OpenAI-compatible chat API with a strict JSON
// schema response format. The API key travels per call because it is resolved
// from the secret bundle at batch time, not at construction.
type OpenAICompleter struct {
	baseURL   string
	model     string
	maxTokens int
}

type CompleterConfig struct {
	BaseURL   string
	Model     string
	MaxTokens int
}

func NewOpenAICompleter(cfg CompleterConfig) *OpenAICompleter {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	return &OpenAICompleter{
		baseURL:   cfg.BaseURL,
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, apiKey, systemPrompt, userPrompt string) ([]byte, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	api := openai.NewClient(opts...)

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "reflection_analysis",
		Description: openai.String("Emotion classification and weekly plan"),
		Schema:      analysisSchema(),
		Strict:      openai.Bool(true),
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens: openai.Int(int64(c.maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	}

	start := time.Now()
	resp, err := api.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	slog.DebugContext(ctx, "inference chat completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return []byte(resp.Choices[0].Message.Content), nil
}

func analysisSchema() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(analysisPayload{})
}
