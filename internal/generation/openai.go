package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
)

// maxPromptTurns bounds how much history is replayed to a hosted model.
const maxPromptTurns = 40

const systemPrompt = `You are a strength and conditioning coach building a multi-week training plan through conversation.
Reply with a single JSON object and nothing else:
{
  "stage": "gathering" | "preview",
  "message": "text shown to the user",
  "reasoning": {"summary": "why you replied this way", "steps": ["..."]},
  "draft": {
    "name": "", "description": "", "difficulty": "easy" | "medium" | "hard",
    "duration_weeks": 0, "frequency_per_week": 0, "tags": [],
    "weeks": [{"week_number": 1, "focus": "", "sessions": [{"name": "", "day_index": 1, "duration_minutes": 45,
      "exercises": [{"name": "", "sets": 3, "reps": 10, "rest_seconds": 90, "found_in_library": true, "needs_creation": false}]}]}]
  },
  "missing_fields": ["duration_weeks", "frequency_per_week"]
}
Use "gathering" and ask one clarifying question while details are missing. Use "preview" only with a complete draft.
Each exercise has either "reps" or "duration_seconds", never both. Keep reasoning out of "message".`

// OpenAIConfig configures the hosted-model oracle.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIClient implements Gateway on an OpenAI-compatible chat completions API.
type OpenAIClient struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIClient builds a client. Retries are disabled; callers decide.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger, extra ...option.RequestOption) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Generate asks the model for the next negotiation step.
func (o *OpenAIClient) Generate(ctx context.Context, req Request) (*Result, error) {
	msgs, err := buildMessages(req)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: msgs,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		o.logger.Warn("chat completion failed", "conversation_id", req.ConversationID, "error", err)
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrRejected)
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)
	return decodeResult([]byte(content))
}

func buildMessages(req Request) ([]openai.ChatCompletionMessageParamUnion, error) {
	turns := req.Turns
	if len(turns) > maxPromptTurns {
		turns = turns[len(turns)-maxPromptTurns:]
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+2)
	msgs = append(msgs, openai.SystemMessage(systemPrompt))

	if req.Draft != nil || len(req.MissingFields) > 0 {
		state, err := json.Marshal(struct {
			Draft         *domain.PlanDraft `json:"current_draft,omitempty"`
			MissingFields []string          `json:"missing_fields,omitempty"`
		}{req.Draft, req.MissingFields})
		if err != nil {
			return nil, fmt.Errorf("encode draft context: %w", err)
		}
		msgs = append(msgs, openai.SystemMessage("Current negotiation state: "+string(state)))
	}

	for _, t := range turns {
		switch t.Role {
		case domain.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}
	return msgs, nil
}

func classifyOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// stripCodeFence tolerates models that wrap JSON in a markdown fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var _ Gateway = (*OpenAIClient)(nil)
