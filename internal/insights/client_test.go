package insights

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"pitchstats/internal/shared/testutil"
	"pitchstats/pkg/contracts/domain"
)

type fakeCompleter struct {
	req         openai.ChatCompletionRequest
	resp        openai.ChatCompletionResponse
	err         error
	calls       int
	hadDeadline bool
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.req = req
	_, f.hadDeadline = ctx.Deadline()
	if err := ctx.Err(); err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return f.resp, f.err
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			},
		},
	}
}

func testClient(t *testing.T, fake *fakeCompleter) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	return &Client{
		api:     fake,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  testutil.NewTestLogger(t),
	}
}

func goalkeeperArtifactFixture() *domain.GoalkeeperArtifact {
	r := 0.82
	p := 0.004
	return &domain.GoalkeeperArtifact{
		Run: domain.RunInfo{
			RunID:       "run-123",
			Study:       "goalkeeper",
			GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Fingerprint: "deadbeef",
		},
		Entities:       10,
		PairedEntities: 9,
		Correlations: []domain.MetricResult{
			{
				Metric: "save_pct",
				Result: domain.StudyResult{
					Procedure:   "pearson_correlation",
					Statistic:   &r,
					PValue:      &p,
					SampleSizes: map[string]int{"pairs": 9},
					Significant: true,
				},
			},
		},
		Outliers: domain.OutlierReport{Players: []string{}},
	}
}

func TestNewClient(t *testing.T) {
	t.Run("requires an api key", func(t *testing.T) {
		_, err := NewClient(Config{}, testutil.NewTestLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api key")
	})

	t.Run("applies defaults", func(t *testing.T) {
		c, err := NewClient(Config{APIKey: "k"}, testutil.NewTestLogger(t))
		require.NoError(t, err)
		assert.Equal(t, "gpt-4.1-mini", c.cfg.Model)
		assert.InDelta(t, 0.7, float64(c.cfg.Temperature), 1e-6)
		assert.Equal(t, 60*time.Second, c.cfg.Timeout)
		assert.Equal(t, rate.Limit(20.0/60.0), c.limiter.Limit())
	})
}

func TestClient_GoalkeeperNarrative(t *testing.T) {
	fake := &fakeCompleter{resp: textResponse("Taller keepers saved more.")}
	c := testClient(t, fake)

	n, err := c.GoalkeeperNarrative(context.Background(), KindExecutiveSummary, goalkeeperArtifactFixture())
	require.NoError(t, err)

	t.Run("narrative carries run identity and content", func(t *testing.T) {
		assert.Equal(t, KindExecutiveSummary, n.Kind)
		assert.Equal(t, "goalkeeper", n.Study)
		assert.Equal(t, "run-123", n.RunID)
		assert.Equal(t, "gpt-4.1-mini", n.Model)
		assert.Equal(t, "Taller keepers saved more.", n.Content)
		assert.Equal(t, string(openai.FinishReasonStop), n.FinishReason)
		assert.False(t, n.GeneratedAt.IsZero())
	})

	t.Run("request is a one-shot chat completion", func(t *testing.T) {
		assert.Equal(t, 1, fake.calls)
		assert.Equal(t, "gpt-4.1-mini", fake.req.Model)
		assert.InDelta(t, 0.7, float64(fake.req.Temperature), 1e-6)
		assert.Equal(t, 500, fake.req.MaxTokens)
		assert.True(t, fake.hadDeadline, "request context should carry a deadline")

		require.Len(t, fake.req.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, fake.req.Messages[0].Role)
		assert.Contains(t, fake.req.Messages[0].Content, "executive summary")
		assert.Equal(t, openai.ChatMessageRoleUser, fake.req.Messages[1].Role)
		assert.Contains(t, fake.req.Messages[1].Content, "height_correlations")
		assert.Contains(t, fake.req.Messages[1].Content, "0.82")
	})
}

func TestClient_TokenBudgetsPerKind(t *testing.T) {
	budgets := map[NarrativeKind]int{
		KindExecutiveSummary: 500,
		KindRecruitment:      600,
		KindScouting:         800,
	}

	for kind, want := range budgets {
		t.Run(string(kind), func(t *testing.T) {
			fake := &fakeCompleter{resp: textResponse("ok")}
			c := testClient(t, fake)

			_, err := c.GoalkeeperNarrative(context.Background(), kind, goalkeeperArtifactFixture())
			require.NoError(t, err)
			assert.Equal(t, want, fake.req.MaxTokens)
		})
	}
}

func TestClient_VARImpactNarrative(t *testing.T) {
	fake := &fakeCompleter{resp: textResponse("Cards rose after VAR.")}
	c := testClient(t, fake)

	art := &domain.VARImpactArtifact{
		Run:      domain.RunInfo{RunID: "run-9", Study: "var_impact"},
		Baseline: domain.CohortRecord{Name: "pre_var", Periods: []string{"2017-2018"}, Teams: 5},
		TeamDeltas: []domain.TeamDeltaRecord{
			{CanonicalID: "arsenal", TeamName: "Arsenal", DeltasPer90: map[string]float64{"yellow_cards": 0.4}},
		},
	}

	n, err := c.VARImpactNarrative(context.Background(), KindScouting, art)
	require.NoError(t, err)
	assert.Equal(t, "var_impact", n.Study)
	assert.Contains(t, fake.req.Messages[1].Content, "metric_comparisons")
	assert.Contains(t, fake.req.Messages[1].Content, "Arsenal")
}

func TestClient_Failures(t *testing.T) {
	t.Run("api error is wrapped, nothing is returned", func(t *testing.T) {
		fake := &fakeCompleter{err: errors.New("quota exhausted")}
		c := testClient(t, fake)

		n, err := c.GoalkeeperNarrative(context.Background(), KindExecutiveSummary, goalkeeperArtifactFixture())
		require.Error(t, err)
		assert.Nil(t, n)
		assert.Contains(t, err.Error(), "openai chat completion")
		assert.Contains(t, err.Error(), "quota exhausted")
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		fake := &fakeCompleter{resp: openai.ChatCompletionResponse{}}
		c := testClient(t, fake)

		_, err := c.GoalkeeperNarrative(context.Background(), KindExecutiveSummary, goalkeeperArtifactFixture())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no choices")
	})

	t.Run("unknown kind is rejected before any request", func(t *testing.T) {
		fake := &fakeCompleter{resp: textResponse("ok")}
		c := testClient(t, fake)

		_, err := c.GoalkeeperNarrative(context.Background(), NarrativeKind("poetry"), goalkeeperArtifactFixture())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown narrative kind")
		assert.Zero(t, fake.calls)
	})

	t.Run("cancelled context stops before the request", func(t *testing.T) {
		fake := &fakeCompleter{resp: textResponse("ok")}
		c := testClient(t, fake)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.GoalkeeperNarrative(ctx, KindExecutiveSummary, goalkeeperArtifactFixture())
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, fake.calls)
	})
}
