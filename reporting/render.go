package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pulsebot/pulsecheck/analysis"
)

// Render formats the report as chat-friendly markdown.
func Render(r Report, limits Limits) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*Feedback Report — session `%s`*\n", r.SessionID)
	if r.Reason != "" {
		fmt.Fprintf(&b, "_Topic: %s_\n", r.Reason)
	}
	fmt.Fprintf(&b, "Date: %s\n\n", time.Now().UTC().Format("2006-01-02"))

	fmt.Fprintf(&b, "*Participation:* %d of %d submitted",
		r.Stats.Submitted, r.Stats.TotalParticipants)
	if r.Stats.LowParticipation {
		b.WriteString(" ⚠️ low participation")
	}
	b.WriteString("\n\n")

	if bar := emojiBar(r.SentimentCounts, limits.MaxEmojiBar); bar != "" {
		fmt.Fprintf(&b, "*Sentiment:* %s\n", bar)
		fmt.Fprintf(&b, "(%d positive / %d neutral / %d negative)\n\n",
			r.SentimentCounts[analysis.SentimentPositive],
			r.SentimentCounts[analysis.SentimentNeutral],
			r.SentimentCounts[analysis.SentimentNegative])
	}

	if len(r.Themes) > 0 {
		b.WriteString("*Themes:*\n")
		for _, theme := range capped(r.Themes, limits.MaxThemes) {
			fmt.Fprintf(&b, "• %s\n", theme)
		}
		b.WriteByte('\n')
	}

	if len(r.WellBullets) > 0 {
		b.WriteString("*Going well:*\n")
		for _, line := range capped(r.WellBullets, limits.MaxBullets) {
			fmt.Fprintf(&b, "• %s\n", line)
		}
		b.WriteByte('\n')
	}
	if len(r.ImproveBullets) > 0 {
		b.WriteString("*Could improve:*\n")
		for _, line := range capped(r.ImproveBullets, limits.MaxBullets) {
			fmt.Fprintf(&b, "• %s\n", line)
		}
		b.WriteByte('\n')
	}

	if r.Summary != "" {
		fmt.Fprintf(&b, "*Summary:*\n%s\n", r.Summary)
	}

	return strings.TrimRight(b.String(), "\n")
}

// emojiBar scales sentiment counts into a bar of at most maxEmoji
// glyphs. Any non-zero class keeps at least one glyph.
func emojiBar(counts map[analysis.SentimentLabel]int, maxEmoji int) string {
	pos := counts[analysis.SentimentPositive]
	neu := counts[analysis.SentimentNeutral]
	neg := counts[analysis.SentimentNegative]
	total := pos + neu + neg
	if total == 0 {
		return ""
	}
	scale := float64(maxEmoji) / float64(total)
	return strings.Repeat("😊", scaled(pos, scale)) +
		strings.Repeat("😐", scaled(neu, scale)) +
		strings.Repeat("🙁", scaled(neg, scale))
}

func scaled(n int, scale float64) int {
	if n == 0 {
		return 0
	}
	v := int(math.Round(float64(n) * scale))
	if v < 1 {
		v = 1
	}
	return v
}

func capped(items []string, max int) []string {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
