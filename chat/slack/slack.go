// Package slack implements chat.Client against the Slack Web API.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pulsebot/pulsecheck/chat"
)

// ErrMissingToken is returned by New when no bot token is provided.
var ErrMissingToken = errors.New("slack: bot token is required")

const defaultBaseURL = "https://slack.com/api"

// Client talks to the Slack Web API with a bot token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

var _ chat.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the slog logger. If not provided, logs are discarded.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client authenticated with the given bot token.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// apiResponse is the envelope every Web API method returns. Method
// specific fields ride alongside; only the ones we read are declared.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`

	Members []string `json:"members"`
	Users   []string `json:"users"`

	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// APIError is a Slack Web API error code (the "error" field of a
// non-ok response). It unwraps to the package-level chat sentinels
// where a code maps cleanly onto one.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack: %s: %s", e.Method, e.Code)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "no_such_subteam", "subteam_not_found":
		return chat.ErrGroupNotFound
	case "missing_scope", "not_authed", "invalid_auth", "token_revoked", "restricted_action", "not_in_channel":
		return chat.ErrNotPermitted
	}
	return nil
}

func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	_, err := c.call(ctx, "chat.postMessage", map[string]any{
		"channel": channelID,
		"text":    text,
	})
	return err
}

func (c *Client) PostEphemeral(ctx context.Context, channelID, userID, text string) error {
	_, err := c.call(ctx, "chat.postEphemeral", map[string]any{
		"channel": channelID,
		"user":    userID,
		"text":    text,
	})
	return err
}

// OpenForm opens the feedback modal. The session id travels in the
// view's private metadata and comes back with the submission payload.
func (c *Client) OpenForm(ctx context.Context, triggerID, sessionID string) error {
	_, err := c.call(ctx, "views.open", map[string]any{
		"trigger_id": triggerID,
		"view":       feedbackModal(sessionID),
	})
	return err
}

func (c *Client) GroupMembers(ctx context.Context, groupID string) ([]string, error) {
	resp, err := c.call(ctx, "usergroups.users.list", map[string]any{
		"usergroup": groupID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// ChannelMembers pages through conversations.members until the cursor
// runs out.
func (c *Client) ChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	var members []string
	cursor := ""
	for {
		params := map[string]any{
			"channel": channelID,
			"limit":   200,
		}
		if cursor != "" {
			params["cursor"] = cursor
		}
		resp, err := c.call(ctx, "conversations.members", params)
		if err != nil {
			return nil, err
		}
		members = append(members, resp.Members...)
		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return members, nil
		}
	}
}

func (c *Client) call(ctx context.Context, method string, params map[string]any) (*apiResponse, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("slack: %s: encode request: %w", method, err)
	}

	u, err := url.JoinPath(c.baseURL, method)
	if err != nil {
		return nil, fmt.Errorf("slack: %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("slack: %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack: %s: %w", method, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("slack: %s: read response: %w", method, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("slack: %s: unexpected status %d", method, httpResp.StatusCode)
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("slack: %s: decode response: %w", method, err)
	}
	if !resp.OK {
		return nil, &APIError{Method: method, Code: resp.Error}
	}
	return &resp, nil
}

// feedbackModal builds the Block Kit view for the feedback form.
func feedbackModal(sessionID string) map[string]any {
	plain := func(text string) map[string]any {
		return map[string]any{"type": "plain_text", "text": text, "emoji": true}
	}
	return map[string]any{
		"type":             "modal",
		"callback_id":      "feedback_modal_callback",
		"private_metadata": sessionID,
		"title":            plain("Share Your Feedback"),
		"submit":           plain("Submit"),
		"close":            plain("Cancel"),
		"blocks": []map[string]any{
			{
				"type":     "input",
				"block_id": "sentiment_block",
				"label":    plain("How do you feel overall?"),
				"element": map[string]any{
					"type":      "static_select",
					"action_id": "sentiment_input",
					"options": []map[string]any{
						{"text": plain(":smile: Positive"), "value": "positive"},
						{"text": plain(":neutral_face: Neutral"), "value": "neutral"},
						{"text": plain(":disappointed: Negative"), "value": "negative"},
					},
				},
			},
			{
				"type":     "input",
				"block_id": "well_block",
				"optional": true,
				"label":    plain("What went well?"),
				"element": map[string]any{
					"type":      "plain_text_input",
					"action_id": "well_input",
					"multiline": true,
				},
			},
			{
				"type":     "input",
				"block_id": "improve_block",
				"label":    plain("What could be improved for next time?"),
				"element": map[string]any{
					"type":      "plain_text_input",
					"action_id": "improve_input",
					"multiline": true,
				},
			},
		},
	}
}
