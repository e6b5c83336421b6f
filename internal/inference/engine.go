// Package inference scores free-text comments as positive or negative using a
// weighted lexicon model. A degraded engine (missing or broken lexicon) serves
// deterministic stub predictions instead of failing requests.
package inference

import (
	"log/slog"
	"math"
	"strings"
	"unicode"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
	"github.com/iMan-sources/sentiment-analysis/internal/metrics"
)

// Confidence bucket labels, derived from the prediction score.
const (
	ConfidenceVeryHigh = "Very High"
	ConfidenceHigh     = "High"
	ConfidenceModerate = "Moderate"
	ConfidenceLow      = "Low"
)

const stubScore = 0.5

// Engine scores text against a signed word-weight lexicon. It is safe for
// concurrent use; the lexicon is immutable after construction.
type Engine struct {
	lexicon  map[string]float64
	degraded bool
}

// NewEngine builds an engine from the lexicon file at path. An empty path
// selects the built-in lexicon. A path that cannot be loaded produces a
// degraded engine serving stub predictions; startup never fails on the model.
func NewEngine(path string) *Engine {
	if path == "" {
		return &Engine{lexicon: builtinLexicon}
	}

	lexicon, err := loadLexicon(path)
	if err != nil {
		slog.Warn("Sentiment model unavailable, serving stub predictions", "path", path, "error", err)
		return &Engine{degraded: true}
	}

	slog.Info("Sentiment lexicon loaded", "path", path, "entries", len(lexicon))
	return &Engine{lexicon: lexicon}
}

// Degraded reports whether the engine is serving stub predictions.
func (e *Engine) Degraded() bool {
	return e.degraded
}

// Score predicts the sentiment of text. It never fails: a degraded engine, a
// text with no known words, or a panic in scoring all fall back to the stub.
func (e *Engine) Score(text string) (p domain.Prediction) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Sentiment scoring panicked, using stub prediction", "panic", r)
			p = stubPrediction(text)
		}
	}()

	if e.degraded {
		return stubPrediction(text)
	}

	net := 0.0
	for _, token := range tokenize(text) {
		net += e.lexicon[token]
	}
	if net == 0 {
		return stubPrediction(text)
	}

	sentiment := domain.SentimentPositive
	if net < 0 {
		sentiment = domain.SentimentNegative
	}

	// Squash the absolute net weight into [0.5, 1).
	score := 1.0 / (1.0 + math.Exp(-math.Abs(net)))

	return domain.Prediction{
		Sentiment:  sentiment,
		Score:      score,
		Confidence: ConfidenceBucket(score),
	}
}

// stubPrediction is the deterministic fallback used when the model cannot
// produce a real score. The label alternates on text length so both classes
// appear in degraded operation.
func stubPrediction(text string) domain.Prediction {
	metrics.InferenceFallbacksTotal.Inc()

	sentiment := domain.SentimentPositive
	if len(text)%2 != 0 {
		sentiment = domain.SentimentNegative
	}
	return domain.Prediction{
		Sentiment:  sentiment,
		Score:      stubScore,
		Confidence: ConfidenceBucket(stubScore),
	}
}

// ConfidenceBucket maps a prediction score to its display bucket. Boundaries
// are exclusive: a score of exactly 0.75 is Moderate, not High.
func ConfidenceBucket(score float64) string {
	switch {
	case score > 0.90:
		return ConfidenceVeryHigh
	case score > 0.75:
		return ConfidenceHigh
	case score > 0.60:
		return ConfidenceModerate
	default:
		return ConfidenceLow
	}
}

// tokenize lowercases text and splits it on any non-letter, non-digit rune.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
