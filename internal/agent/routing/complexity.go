package routing

import (
	"strings"

	"github.com/radium-run/radium/internal/agent"
)

// ComplexityWeights tunes how each signal contributes to a request's
// complexity score.
type ComplexityWeights struct {
	// LengthWeight scales the contribution of input length.
	LengthWeight float64
	// ToolCountWeight scales the contribution of the tool count.
	ToolCountWeight float64
	// ReasoningWeight scales the contribution of reasoning-language cues.
	ReasoningWeight float64
}

// DefaultComplexityWeights mirrors the balance used by the heuristic
// classifier: length matters least, reasoning cues matter most.
func DefaultComplexityWeights() ComplexityWeights {
	return ComplexityWeights{
		LengthWeight:    0.3,
		ToolCountWeight: 0.3,
		ReasoningWeight: 0.4,
	}
}

// ComplexityScore computes a bounded [0,100] complexity score for req from
// input length, tool count, and the same reasoning/code heuristics the
// classifier uses to tag requests.
func ComplexityScore(req *agent.CompletionRequest, weights ComplexityWeights) float64 {
	if req == nil {
		return 0
	}

	content := lastUserContent(req)
	lengthScore := scaleLength(len(content))
	toolScore := scaleToolCount(len(req.Tools))
	reasoningScore := scaleReasoning(content)

	score := weights.LengthWeight*lengthScore +
		weights.ToolCountWeight*toolScore +
		weights.ReasoningWeight*reasoningScore

	return clampScore(score)
}

// scaleLength maps a character count to a 0-100 signal, saturating past
// 4000 characters (roughly a long multi-paragraph task description).
func scaleLength(n int) float64 {
	const cap = 4000.0
	if n <= 0 {
		return 0
	}
	v := float64(n) / cap * 100
	if v > 100 {
		return 100
	}
	return v
}

// scaleToolCount maps the number of tools offered to a 0-100 signal,
// saturating past 10 tools.
func scaleToolCount(n int) float64 {
	const cap = 10.0
	if n <= 0 {
		return 0
	}
	v := float64(n) / cap * 100
	if v > 100 {
		return 100
	}
	return v
}

// scaleReasoning returns 100 if the content matches reasoning-heavy or
// code-heavy cues, 40 if it matches quick-answer cues, 60 otherwise.
func scaleReasoning(content string) float64 {
	lower := strings.ToLower(content)
	if reasonRegex.MatchString(lower) || codeRegex.MatchString(lower) || markdownCode.MatchString(lower) {
		return 100
	}
	if quickRegex.MatchString(lower) || len(strings.TrimSpace(content)) < 80 {
		return 20
	}
	return 60
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
