// Package reporting turns a finished (or expired) session's raw
// feedback into an aggregated report and renders it as chat-friendly
// markdown.
package reporting

import (
	"context"
	"io"
	"log/slog"
	"math"

	"github.com/pulsebot/pulsecheck/analysis"
	"github.com/pulsebot/pulsecheck/sessions"
)

// Limits caps the rendered report's size.
type Limits struct {
	MaxEmojiBar int
	MaxBullets  int
	MaxThemes   int
	MaxComments int

	// LowParticipationThreshold is the submitted/total ratio below which
	// the report flags low participation.
	LowParticipationThreshold float64
}

// DefaultLimits mirrors the tuning the report format was designed for.
func DefaultLimits() Limits {
	return Limits{
		MaxEmojiBar:               20,
		MaxBullets:                5,
		MaxThemes:                 5,
		MaxComments:               50,
		LowParticipationThreshold: 0.5,
	}
}

// Stats is the participation summary shown in the report.
type Stats struct {
	TotalParticipants int
	Submitted         int
	Pending           int
	LowParticipation  bool
}

// Report is the normalized output of the aggregation pipeline, ready
// for rendering.
type Report struct {
	SessionID       string
	Reason          string
	SentimentCounts map[analysis.SentimentLabel]int
	Themes          []string
	Quotes          []string // anonymized, submission order
	WellBullets     []string
	ImproveBullets  []string
	Summary         string
	Stats           Stats
}

// ParticipationRatio returns the submitted/total fraction in [0, 1].
func (r Report) ParticipationRatio() float64 {
	total := r.Stats.TotalParticipants
	if total == 0 {
		total = 1
	}
	return float64(r.Stats.Submitted) / float64(total)
}

// Builder runs the aggregation pipeline. Analysis steps are
// best-effort: a failed anonymization falls back to raw quotes, failed
// themes or summary are simply omitted, and per-item sentiment failures
// fall back to the participant's self-reported sentiment. A nil
// Analyzer skips the analysis steps entirely, which suits deployments
// without an analysis backend configured.
type Builder struct {
	Analyzer analysis.Analyzer
	Limits   Limits
	Log      *slog.Logger
}

// NewBuilder creates a Builder with default limits.
func NewBuilder(an analysis.Analyzer, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{Analyzer: an, Limits: DefaultLimits(), Log: log}
}

// Build aggregates the session's feedback. The session is read-only
// here; pass a clone when the caller still holds a live registry entry.
func (b *Builder) Build(ctx context.Context, sess *sessions.Session) Report {
	records := sess.Feedback()

	counts := make(map[analysis.SentimentLabel]int)
	var wellBullets, improveBullets, quotes []string
	for _, rec := range records {
		counts[b.classify(ctx, rec)]++
		if rec.Well != "" {
			wellBullets = append(wellBullets, rec.Well)
		}
		if rec.Improve != "" {
			improveBullets = append(improveBullets, rec.Improve)
		}
		if text := rec.Text(); text != "" {
			quotes = append(quotes, text)
		}
	}
	if len(quotes) > b.Limits.MaxComments {
		quotes = quotes[:b.Limits.MaxComments]
	}

	anonQuotes := quotes
	if b.Analyzer != nil && len(quotes) > 0 {
		anon, err := b.Analyzer.Anonymize(ctx, quotes)
		if err != nil {
			b.Log.Warn("report.anonymize.fail", slog.String("session_id", sess.ID()), slog.String("err", err.Error()))
		} else {
			anonQuotes = anon
		}
	}

	var themes []string
	if b.Analyzer != nil && len(anonQuotes) > 0 {
		extracted, err := b.Analyzer.Themes(ctx, anonQuotes, b.Limits.MaxThemes)
		if err != nil {
			b.Log.Warn("report.themes.fail", slog.String("session_id", sess.ID()), slog.String("err", err.Error()))
		} else {
			themes = extracted
		}
	}

	var summary string
	if b.Analyzer != nil && len(anonQuotes) > 0 {
		s, err := b.Analyzer.Summarize(ctx, anonQuotes, themes)
		if err != nil {
			b.Log.Warn("report.summary.fail", slog.String("session_id", sess.ID()), slog.String("err", err.Error()))
		} else {
			summary = s
		}
	}

	total := len(sess.Targets())
	submitted := len(sess.Submitted())
	stats := Stats{
		TotalParticipants: total,
		Submitted:         submitted,
		Pending:           len(sess.Pending()),
		LowParticipation:  float64(submitted) < math.Ceil(float64(total)*b.Limits.LowParticipationThreshold),
	}

	if len(wellBullets) > b.Limits.MaxBullets {
		wellBullets = wellBullets[:b.Limits.MaxBullets]
	}
	if len(improveBullets) > b.Limits.MaxBullets {
		improveBullets = improveBullets[:b.Limits.MaxBullets]
	}

	return Report{
		SessionID:       sess.ID(),
		Reason:          sess.Reason(),
		SentimentCounts: counts,
		Themes:          themes,
		Quotes:          anonQuotes,
		WellBullets:     wellBullets,
		ImproveBullets:  improveBullets,
		Summary:         summary,
		Stats:           stats,
	}
}

func (b *Builder) classify(ctx context.Context, rec sessions.Feedback) analysis.SentimentLabel {
	if text := rec.Text(); b.Analyzer != nil && text != "" {
		res, err := b.Analyzer.Sentiment(ctx, text)
		if err == nil {
			return res.Label
		}
		b.Log.Warn("report.sentiment.fail", slog.String("err", err.Error()))
	}
	if label := analysis.SentimentLabel(rec.Sentiment); label.Valid() {
		return label
	}
	return analysis.SentimentNeutral
}
