package reporting

import (
	"context"
	"strings"
	"testing"

	"github.com/pulsebot/pulsecheck/analysis"
	"github.com/pulsebot/pulsecheck/analysis/analysistest"
	"github.com/pulsebot/pulsecheck/sessions"
)

func buildSession(t *testing.T) *sessions.Session {
	t.Helper()
	s := sessions.New("sess-1", "UINIT", []string{"U1", "U2", "U3"}, sessions.WithReason("sprint 42"))
	if err := s.Submit("U1", sessions.Feedback{Sentiment: "positive", Well: "great pairing", Improve: "fewer meetings"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit("U2", sessions.Feedback{Sentiment: "negative", Improve: "standups run long"}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestBuildAggregates(t *testing.T) {
	an := &analysistest.Analyzer{
		SentimentByText: map[string]analysis.SentimentResult{
			"great pairing\nfewer meetings": {Label: analysis.SentimentPositive, Score: 0.8},
			"standups run long":             {Label: analysis.SentimentNegative, Score: -0.4},
		},
		ThemesResult:  []string{"meetings", "collaboration"},
		SummaryResult: "Mostly upbeat with concerns about meeting load.",
	}
	b := NewBuilder(an, nil)

	r := b.Build(context.Background(), buildSession(t))

	if r.SentimentCounts[analysis.SentimentPositive] != 1 || r.SentimentCounts[analysis.SentimentNegative] != 1 {
		t.Fatalf("unexpected sentiment tally: %v", r.SentimentCounts)
	}
	if r.Stats.Submitted != 2 || r.Stats.Pending != 1 || r.Stats.TotalParticipants != 3 {
		t.Fatalf("unexpected stats: %+v", r.Stats)
	}
	// 2 of 3 submitted is at the ceil(3*0.5)=2 boundary, so not low.
	if r.Stats.LowParticipation {
		t.Fatal("2/3 participation flagged as low")
	}
	if len(r.Themes) != 2 || r.Summary == "" {
		t.Fatalf("analysis outputs missing: themes=%v summary=%q", r.Themes, r.Summary)
	}
	if got := r.ParticipationRatio(); got < 0.66 || got > 0.67 {
		t.Fatalf("participation ratio %v", got)
	}
}

func TestBuildLowParticipation(t *testing.T) {
	s := sessions.New("sess-1", "UINIT", []string{"U1", "U2", "U3", "U4"})
	if err := s.Submit("U1", sessions.Feedback{Well: "ok"}); err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(&analysistest.Analyzer{}, nil)
	r := b.Build(context.Background(), s)
	if !r.Stats.LowParticipation {
		t.Fatal("1/4 participation not flagged as low")
	}
}

func TestBuildAnalyzerFailureFallsBack(t *testing.T) {
	an := &analysistest.Analyzer{Err: context.DeadlineExceeded}
	b := NewBuilder(an, nil)

	r := b.Build(context.Background(), buildSession(t))

	// Self-reported sentiment takes over when the analyzer fails.
	if r.SentimentCounts[analysis.SentimentPositive] != 1 || r.SentimentCounts[analysis.SentimentNegative] != 1 {
		t.Fatalf("fallback sentiment tally wrong: %v", r.SentimentCounts)
	}
	// Raw quotes survive a failed anonymization pass.
	if len(r.Quotes) != 2 {
		t.Fatalf("expected raw quotes on fallback, got %v", r.Quotes)
	}
	if len(r.Themes) != 0 || r.Summary != "" {
		t.Fatal("failed analysis steps should be omitted, not fabricated")
	}
}

func TestRender(t *testing.T) {
	r := Report{
		SessionID: "sess-1",
		Reason:    "sprint 42",
		SentimentCounts: map[analysis.SentimentLabel]int{
			analysis.SentimentPositive: 2,
			analysis.SentimentNegative: 1,
		},
		Themes:         []string{"meetings"},
		WellBullets:    []string{"great pairing"},
		ImproveBullets: []string{"standups run long"},
		Summary:        "Generally positive.",
		Stats:          Stats{TotalParticipants: 3, Submitted: 3},
	}
	out := Render(r, DefaultLimits())

	for _, want := range []string{"sess-1", "sprint 42", "3 of 3 submitted", "meetings", "great pairing", "standups run long", "Generally positive."} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "low participation") {
		t.Fatal("full participation flagged as low")
	}
}

func TestRenderEmojiBarCaps(t *testing.T) {
	counts := map[analysis.SentimentLabel]int{
		analysis.SentimentPositive: 100,
		analysis.SentimentNegative: 1,
	}
	bar := emojiBar(counts, 20)
	if n := strings.Count(bar, "🙁"); n != 1 {
		t.Fatalf("non-zero class lost its glyph: %q", bar)
	}
	if n := strings.Count(bar, "😊"); n > 20 {
		t.Fatalf("bar exceeds cap: %d glyphs", n)
	}
}

func TestBuildWithoutAnalyzer(t *testing.T) {
	b := NewBuilder(nil, nil)

	r := b.Build(context.Background(), buildSession(t))

	// Self-reported sentiment carries the tally.
	if r.SentimentCounts[analysis.SentimentPositive] != 1 || r.SentimentCounts[analysis.SentimentNegative] != 1 {
		t.Fatalf("unexpected sentiment tally: %v", r.SentimentCounts)
	}
	if len(r.Themes) != 0 || r.Summary != "" {
		t.Fatalf("analysis outputs present without analyzer: themes=%v summary=%q", r.Themes, r.Summary)
	}
	// Quotes pass through unredacted.
	if len(r.Quotes) != 2 || !strings.Contains(r.Quotes[0], "great pairing") {
		t.Fatalf("unexpected quotes: %v", r.Quotes)
	}
}
