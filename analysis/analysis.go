// Package analysis defines the text-analysis boundary the reporting
// pipeline depends on. Implementations live in subpackages; the core
// never assumes a particular model provider.
package analysis

import "context"

// SentimentLabel is one of the supported sentiment classes.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// Valid reports whether l is a known label.
func (l SentimentLabel) Valid() bool {
	switch l {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// SentimentResult is a classified sentiment with a score in [-1, 1].
type SentimentResult struct {
	Label SentimentLabel
	Score float64
}

// Analyzer provides the LLM-backed text functions the report builder
// calls. All methods must be safe for concurrent use.
type Analyzer interface {
	// Sentiment classifies a single feedback item.
	Sentiment(ctx context.Context, text string) (SentimentResult, error)

	// Themes extracts up to max overarching themes from the items.
	Themes(ctx context.Context, items []string, max int) ([]string, error)

	// Anonymize rewrites quotes so no personal identifiers remain,
	// preserving order.
	Anonymize(ctx context.Context, quotes []string) ([]string, error)

	// Summarize produces a short neutral-tone summary of the quotes
	// guided by the themes. Empty input yields an empty summary.
	Summarize(ctx context.Context, quotes, themes []string) (string, error)
}
