// Package openai implements analysis.Analyzer against any
// OpenAI-compatible chat-completions endpoint.
//
// Prompts ask the model to answer with a minified JSON payload and the
// parser extracts the first JSON object or array from the raw content,
// so stray prose around the payload does not break machine parsing.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pulsebot/pulsecheck/analysis"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4.1"

	anonymizeBatchSize = 10
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("openai: api key is not set")

var (
	objectRE = regexp.MustCompile(`\{[\s\S]*?\}`)
	arrayRE  = regexp.MustCompile(`\[[^\]]*\]`)
)

// Client calls an OpenAI-compatible chat-completions API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	log        *slog.Logger
}

var _ analysis.Analyzer = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a non-default endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithModel overrides the default model id.
func WithModel(m string) Option {
	return func(c *Client) { c.model = m }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets the slog logger. If not provided, logs are discarded.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client. The API key is required.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) chatCompletion(ctx context.Context, msgs []chatMessage, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("openai: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("openai: response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

const sentimentSystemPrompt = "You are a precise sentiment analysis assistant. " +
	`Return ONLY a minified JSON like {"label":"positive", "score":0.8}.`

// Sentiment implements analysis.Analyzer.
func (c *Client) Sentiment(ctx context.Context, text string) (analysis.SentimentResult, error) {
	content, err := c.chatCompletion(ctx, []chatMessage{
		{Role: "system", Content: sentimentSystemPrompt},
		{Role: "user", Content: "Sentiment analysis request. Please identify sentiment label" +
			" and a score between -1 and 1 (negative..positive).\n\nText:\n" + text},
	}, 0, 0)
	if err != nil {
		return analysis.SentimentResult{}, err
	}
	return parseSentiment(content)
}

func parseSentiment(content string) (analysis.SentimentResult, error) {
	raw := objectRE.FindString(content)
	if raw == "" {
		return analysis.SentimentResult{}, errors.New("openai: response did not contain a JSON object")
	}
	var payload struct {
		Label string   `json:"label"`
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return analysis.SentimentResult{}, fmt.Errorf("openai: parse sentiment payload: %w", err)
	}
	label := analysis.SentimentLabel(payload.Label)
	if !label.Valid() {
		return analysis.SentimentResult{}, fmt.Errorf("openai: unexpected sentiment label %q", payload.Label)
	}
	if payload.Score == nil {
		return analysis.SentimentResult{}, errors.New("openai: score missing or not numeric")
	}
	score := *payload.Score
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return analysis.SentimentResult{Label: label, Score: score}, nil
}

const themesSystemPrompt = "You are an expert analyst. Given a set of feedback sentences, identify up " +
	"to N overarching *themes* expressed. Respond ONLY with a minified JSON " +
	`array of theme strings (e.g. ["communication", "work-life balance"]). ` +
	"Do not include any other keys or text. Themes must be short noun phrases."

// Themes implements analysis.Analyzer.
func (c *Client) Themes(ctx context.Context, items []string, max int) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	var b strings.Builder
	for _, line := range items {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	content, err := c.chatCompletion(ctx, []chatMessage{
		{Role: "system", Content: themesSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(
			"Please extract up to %d high-level themes from the following feedback:\n%s", max, b.String())},
	}, 0, 0)
	if err != nil {
		return nil, err
	}
	themes, err := parseStringArray(content)
	if err != nil {
		return nil, err
	}
	if len(themes) > max {
		themes = themes[:max]
	}
	return themes, nil
}

const anonymizeSystemPrompt = "You are a privacy specialist. Your task is to rewrite user quotes so that " +
	"no personal identifiers remain. Replace names, @mentions, emails, role or " +
	"company names with neutral placeholders like 'someone', 'colleague', etc. " +
	"Keep the meaning and sentiment. DO NOT add commentary. Return ONLY a " +
	"JSON array of rewritten quotes in the same order as input."

// Anonymize implements analysis.Analyzer. Quotes are rewritten in
// batches; a failed batch falls back to the originals prefixed with
// "[unredacted] " so the report can still go out.
func (c *Client) Anonymize(ctx context.Context, quotes []string) ([]string, error) {
	if len(quotes) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(quotes))
	for start := 0; start < len(quotes); start += anonymizeBatchSize {
		end := start + anonymizeBatchSize
		if end > len(quotes) {
			end = len(quotes)
		}
		batch := quotes[start:end]
		rewritten, err := c.anonymizeBatch(ctx, batch)
		if err != nil {
			c.log.Warn("openai.anonymize.fallback", slog.String("err", err.Error()))
			for _, q := range batch {
				out = append(out, "[unredacted] "+q)
			}
			continue
		}
		out = append(out, rewritten...)
	}
	return out, nil
}

func (c *Client) anonymizeBatch(ctx context.Context, batch []string) ([]string, error) {
	content, err := c.chatCompletion(ctx, []chatMessage{
		{Role: "system", Content: anonymizeSystemPrompt},
		{Role: "user", Content: "Please anonymize the following quotes:\n" + strings.Join(batch, "\n")},
	}, 0.3, 0)
	if err != nil {
		return nil, err
	}
	rewritten, err := parseStringArray(content)
	if err != nil {
		return nil, err
	}
	if len(rewritten) != len(batch) {
		return nil, fmt.Errorf("openai: anonymized %d quotes, expected %d", len(rewritten), len(batch))
	}
	return rewritten, nil
}

const summarySystemPrompt = "You are a helpful assistant tasked with summarizing employee feedback. " +
	"You have already anonymized quotes and extracted high-level themes. " +
	"Write a concise summary (<=150 words, neutral tone) that highlights the " +
	"overall sentiment, recurring themes, and key takeaways. Do not mention " +
	"identities, quotes, or counts explicitly. Simply describe the gist."

// Summarize implements analysis.Analyzer.
func (c *Client) Summarize(ctx context.Context, quotes, themes []string) (string, error) {
	if len(quotes) == 0 {
		return "", nil
	}
	themeLines := "(no explicit themes)"
	if len(themes) > 0 {
		var b strings.Builder
		for i, t := range themes {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "- %s", t)
		}
		themeLines = b.String()
	}
	quoted := make([]string, len(quotes))
	for i, q := range quotes {
		quoted[i] = fmt.Sprintf("%q", q)
	}
	userPrompt := fmt.Sprintf(
		"The high-level themes are:\n%s\n\nHere are anonymized quotes:\n%s\n\nPlease produce the summary paragraph.",
		themeLines, strings.Join(quoted, "\n"))

	content, err := c.chatCompletion(ctx, []chatMessage{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: userPrompt},
	}, 0.4, 250)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func parseStringArray(content string) ([]string, error) {
	raw := arrayRE.FindString(content)
	if raw == "" {
		return nil, errors.New("openai: response did not contain a JSON array")
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("openai: payload was not an array of strings: %w", err)
	}
	return items, nil
}
