package insights

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	apperrors "pitchstats/internal/errors"
	"pitchstats/pkg/contracts/domain"
)

// Config controls the narrative client.
type Config struct {
	APIKey            string        `yaml:"api_key" envconfig:"API_KEY"`
	Model             string        `yaml:"model" envconfig:"MODEL"`
	Temperature       float32       `yaml:"temperature" envconfig:"TEMPERATURE"`
	RequestsPerMinute float64       `yaml:"requests_per_minute" envconfig:"REQUESTS_PER_MINUTE"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// DefaultConfig returns the client defaults; the API key always comes from
// the environment or config file.
func DefaultConfig() Config {
	return Config{
		Model:             "gpt-4.1-mini",
		Temperature:       0.7,
		RequestsPerMinute: 20,
		Timeout:           60 * time.Second,
	}
}

// Narrative is one generated write-up, tied back to the run it describes.
type Narrative struct {
	Kind         NarrativeKind `json:"kind"`
	Study        string        `json:"study"`
	RunID        string        `json:"run_id"`
	Model        string        `json:"model"`
	Content      string        `json:"content"`
	FinishReason string        `json:"finish_reason"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// chatCompleter is the slice of the OpenAI client the narratives need.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client generates narratives from study artifacts, one request per
// narrative, rate limited across calls.
type Client struct {
	api     chatCompleter
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a narrative client. The API key is required; everything
// else falls back to DefaultConfig values.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	defaults := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaults.Temperature
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		api:     openai.NewClient(cfg.APIKey),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), 1),
		logger:  logger.With(slog.String("component", "insights")),
	}, nil
}

// GoalkeeperNarrative writes one narrative of the given kind from a
// goalkeeper artifact.
func (c *Client) GoalkeeperNarrative(ctx context.Context, kind NarrativeKind, art *domain.GoalkeeperArtifact) (*Narrative, error) {
	prompt, err := goalkeeperPrompt(art)
	if err != nil {
		return nil, err
	}
	return c.generate(ctx, kind, art.Run, prompt)
}

// VARImpactNarrative writes one narrative of the given kind from a VAR
// impact artifact.
func (c *Client) VARImpactNarrative(ctx context.Context, kind NarrativeKind, art *domain.VARImpactArtifact) (*Narrative, error) {
	prompt, err := varImpactPrompt(art)
	if err != nil {
		return nil, err
	}
	return c.generate(ctx, kind, art.Run, prompt)
}

// generate performs one rate-limited, deadline-bounded chat completion.
func (c *Client) generate(ctx context.Context, kind NarrativeKind, run domain.RunInfo, prompt string) (*Narrative, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown narrative kind %q", kind)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	c.logger.InfoContext(reqCtx, "generating narrative",
		slog.String("kind", string(kind)),
		slog.String("study", run.Study),
		slog.String("run_id", run.RunID),
		slog.String("model", c.cfg.Model),
	)

	resp, err := c.api.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   maxTokens(kind),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(kind)},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.logger.ErrorContext(reqCtx, "narrative generation failed",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.NewNetworkError("openai chat completion", err).
			WithContext("model", c.cfg.Model)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.NewNetworkError("openai returned no choices", nil)
	}

	choice := resp.Choices[0]
	c.logger.InfoContext(reqCtx, "narrative generated",
		slog.String("kind", string(kind)),
		slog.String("finish_reason", string(choice.FinishReason)),
		slog.Duration("duration", time.Since(start)),
	)

	return &Narrative{
		Kind:         kind,
		Study:        run.Study,
		RunID:        run.RunID,
		Model:        c.cfg.Model,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		GeneratedAt:  time.Now().UTC(),
	}, nil
}
