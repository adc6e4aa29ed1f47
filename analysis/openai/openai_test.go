package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pulsebot/pulsecheck/analysis"
)

// newTestClient serves canned assistant content from a fake
// chat-completions endpoint, one reply per call in order.
func newTestClient(t *testing.T, replies ...string) *Client {
	t.Helper()
	call := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if call >= len(replies) {
			t.Errorf("unexpected call %d", call+1)
			http.Error(w, "no reply scripted", http.StatusInternalServerError)
			return
		}
		reply := replies[call]
		call++
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	c, err := New("sk-test", WithBaseURL(srv.URL), WithModel("test-model"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSentiment(t *testing.T) {
	c := newTestClient(t, `Sure! {"label":"positive","score":0.8}`)

	res, err := c.Sentiment(context.Background(), "the sprint went great")
	if err != nil {
		t.Fatalf("sentiment: %v", err)
	}
	if res.Label != analysis.SentimentPositive || res.Score != 0.8 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSentimentClampsScore(t *testing.T) {
	c := newTestClient(t, `{"label":"negative","score":-3.5}`)

	res, err := c.Sentiment(context.Background(), "awful")
	if err != nil {
		t.Fatalf("sentiment: %v", err)
	}
	if res.Score != -1 {
		t.Fatalf("score = %v, want -1", res.Score)
	}
}

func TestSentimentRejectsUnknownLabel(t *testing.T) {
	c := newTestClient(t, `{"label":"ecstatic","score":1}`)

	if _, err := c.Sentiment(context.Background(), "wow"); err == nil {
		t.Fatal("expected error for unknown label")
	}
}

func TestSentimentRejectsMissingJSON(t *testing.T) {
	c := newTestClient(t, "I cannot help with that.")

	if _, err := c.Sentiment(context.Background(), "hm"); err == nil {
		t.Fatal("expected error for missing payload")
	}
}

func TestThemesCapsAtMax(t *testing.T) {
	c := newTestClient(t, `["communication","tooling","pace"]`)

	themes, err := c.Themes(context.Background(), []string{"a", "b"}, 2)
	if err != nil {
		t.Fatalf("themes: %v", err)
	}
	if len(themes) != 2 || themes[0] != "communication" {
		t.Fatalf("unexpected themes %v", themes)
	}
}

func TestThemesEmptyInput(t *testing.T) {
	c := newTestClient(t) // any call would fail the test
	themes, err := c.Themes(context.Background(), nil, 5)
	if err != nil || themes != nil {
		t.Fatalf("themes = %v, err = %v", themes, err)
	}
}

func TestAnonymizeFallsBackPerBatch(t *testing.T) {
	// First reply anonymizes one batch; second reply is garbage, so the
	// second batch falls back to prefixed originals.
	first := make([]string, anonymizeBatchSize)
	for i := range first {
		first[i] = "someone said a thing"
	}
	firstJSON, _ := json.Marshal(first)
	c := newTestClient(t, string(firstJSON), "no array here")

	quotes := make([]string, anonymizeBatchSize+2)
	for i := range quotes {
		quotes[i] = "Alice said a thing"
	}
	out, err := c.Anonymize(context.Background(), quotes)
	if err != nil {
		t.Fatalf("anonymize: %v", err)
	}
	if len(out) != len(quotes) {
		t.Fatalf("got %d quotes, want %d", len(out), len(quotes))
	}
	if out[0] != "someone said a thing" {
		t.Errorf("first batch not rewritten: %q", out[0])
	}
	if out[anonymizeBatchSize] != "[unredacted] Alice said a thing" {
		t.Errorf("fallback batch not prefixed: %q", out[anonymizeBatchSize])
	}
}

func TestSummarize(t *testing.T) {
	c := newTestClient(t, "  Overall the team is upbeat.  ")

	got, err := c.Summarize(context.Background(), []string{"q1"}, []string{"morale"})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if got != "Overall the team is upbeat." {
		t.Fatalf("summary = %q", got)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	c, err := New("sk-test", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := c.Sentiment(context.Background(), "x"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
