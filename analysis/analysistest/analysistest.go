// Package analysistest provides a canned analysis.Analyzer for tests.
package analysistest

import (
	"context"
	"sync"

	"github.com/pulsebot/pulsecheck/analysis"
)

// Analyzer serves fixed responses and records inputs. The zero value
// classifies everything neutral and returns empty themes and summaries.
type Analyzer struct {
	mu sync.Mutex

	// SentimentByText maps exact input text to a result; unmatched text
	// falls back to neutral with score 0.
	SentimentByText map[string]analysis.SentimentResult
	ThemesResult    []string
	SummaryResult   string

	// Err, when set, is returned from every method.
	Err error

	sentimentCalls []string
	anonymized     [][]string
}

var _ analysis.Analyzer = (*Analyzer)(nil)

func (a *Analyzer) Sentiment(_ context.Context, text string) (analysis.SentimentResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return analysis.SentimentResult{}, a.Err
	}
	a.sentimentCalls = append(a.sentimentCalls, text)
	if res, ok := a.SentimentByText[text]; ok {
		return res, nil
	}
	return analysis.SentimentResult{Label: analysis.SentimentNeutral}, nil
}

func (a *Analyzer) Themes(_ context.Context, items []string, max int) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return nil, a.Err
	}
	themes := a.ThemesResult
	if len(themes) > max {
		themes = themes[:max]
	}
	out := make([]string, len(themes))
	copy(out, themes)
	return out, nil
}

func (a *Analyzer) Anonymize(_ context.Context, quotes []string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return nil, a.Err
	}
	recorded := make([]string, len(quotes))
	copy(recorded, quotes)
	a.anonymized = append(a.anonymized, recorded)
	out := make([]string, len(quotes))
	copy(out, quotes)
	return out, nil
}

func (a *Analyzer) Summarize(_ context.Context, quotes, _ []string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return "", a.Err
	}
	if len(quotes) == 0 {
		return "", nil
	}
	return a.SummaryResult, nil
}

// SentimentCalls returns the texts classified so far.
func (a *Analyzer) SentimentCalls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.sentimentCalls))
	copy(out, a.sentimentCalls)
	return out
}
