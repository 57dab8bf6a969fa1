package insights

import (
	"encoding/json"
	"fmt"

	"pitchstats/pkg/contracts/domain"
)

// NarrativeKind selects the audience framing and the response budget.
type NarrativeKind string

const (
	// KindExecutiveSummary is a short brief for club decision makers.
	KindExecutiveSummary NarrativeKind = "executive_summary"
	// KindRecruitment frames the findings as recruitment guidance.
	KindRecruitment NarrativeKind = "recruitment"
	// KindScouting is a longer scouting-desk write-up.
	KindScouting NarrativeKind = "scouting"
)

// IsValid checks the kind is one of the known narratives.
func (k NarrativeKind) IsValid() bool {
	switch k {
	case KindExecutiveSummary, KindRecruitment, KindScouting:
		return true
	}
	return false
}

const analystPersona = "You are a football analytics writer. You ground every " +
	"claim in the numbers provided, you state sample sizes and significance " +
	"plainly, and you call out degenerate or insufficient results instead of " +
	"papering over them. Correlation is never presented as causation."

// systemPrompt returns the persona instructions for a narrative kind.
func systemPrompt(kind NarrativeKind) string {
	switch kind {
	case KindExecutiveSummary:
		return analystPersona + " Write a concise executive summary for club " +
			"leadership: lead with the headline finding, then the two or three " +
			"numbers that support it, then one caveat."
	case KindRecruitment:
		return analystPersona + " Write recruitment guidance: what the findings " +
			"imply for profile targeting, which measured attributes matter, and " +
			"where the data is too thin to act on."
	case KindScouting:
		return analystPersona + " Write a scouting-desk report: walk through the " +
			"findings section by section, name the standout individuals, and " +
			"flag the outliers explicitly."
	default:
		return analystPersona
	}
}

// maxTokens returns the response budget for a narrative kind.
func maxTokens(kind NarrativeKind) int {
	switch kind {
	case KindExecutiveSummary:
		return 500
	case KindRecruitment:
		return 600
	case KindScouting:
		return 800
	default:
		return 500
	}
}

// goalkeeperPrompt serializes the goalkeeper findings for the model. The
// per-player record table stays out of the prompt; the digest carries the
// inference outcomes and the leaderboard.
func goalkeeperPrompt(art *domain.GoalkeeperArtifact) (string, error) {
	digest := struct {
		Study          string                     `json:"study"`
		Entities       int                        `json:"entities"`
		PairedEntities int                        `json:"entities_with_height"`
		Correlations   []domain.MetricResult      `json:"height_correlations"`
		Terciles       []domain.TercileRecord     `json:"height_terciles"`
		ANOVA          domain.StudyResult         `json:"tercile_anova"`
		Outliers       []string                   `json:"save_pct_outliers"`
		HeightSummary  domain.DistributionSummary `json:"height_summary"`
		SavePctSummary domain.DistributionSummary `json:"save_pct_summary"`
		TopPerformers  []domain.TopKeeper         `json:"top_performers"`
		Warnings       []string                   `json:"warnings,omitempty"`
	}{
		Study:          art.Run.Study,
		Entities:       art.Entities,
		PairedEntities: art.PairedEntities,
		Correlations:   art.Correlations,
		Terciles:       art.Terciles,
		ANOVA:          art.ANOVA,
		Outliers:       art.Outliers.Players,
		HeightSummary:  art.HeightSummary,
		SavePctSummary: art.SavePctSummary,
		TopPerformers:  art.TopPerformers,
		Warnings:       art.Warnings,
	}

	payload, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize goalkeeper digest: %w", err)
	}
	return "Findings from a goalkeeper height study (null means the value " +
		"could not be computed from the data):\n\n" + string(payload), nil
}

// varImpactPrompt serializes the VAR findings for the model.
func varImpactPrompt(art *domain.VARImpactArtifact) (string, error) {
	digest := struct {
		Study       string                          `json:"study"`
		Baseline    domain.CohortRecord             `json:"baseline_cohort"`
		Comparison  domain.CohortRecord             `json:"comparison_cohort"`
		Comparisons []domain.MetricComparisonRecord `json:"metric_comparisons"`
		TeamDeltas  []domain.TeamDeltaRecord        `json:"team_deltas_per_90"`
		Warnings    []string                        `json:"warnings,omitempty"`
	}{
		Study:       art.Run.Study,
		Baseline:    art.Baseline,
		Comparison:  art.Comparison,
		Comparisons: art.Comparisons,
		TeamDeltas:  art.TeamDeltas,
		Warnings:    art.Warnings,
	}

	payload, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize var impact digest: %w", err)
	}
	return "Findings from a study of discipline rates before and after VAR " +
		"introduction (null means the value could not be computed from the " +
		"data):\n\n" + string(payload), nil
}
