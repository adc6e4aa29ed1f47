// Package httpapi exposes the inbound HTTP surface: the slash command,
// the interaction callbacks, and a small diagnostics API. Handlers
// acknowledge quickly and push the slow work onto the shared pool.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/labstack/echo/v4"

	"github.com/pulsebot/pulsecheck/chat"
	"github.com/pulsebot/pulsecheck/feedback"
	"github.com/pulsebot/pulsecheck/sessions"
)

var (
	jsonMediaType = contenttype.NewMediaType("application/json")
	formMediaType = contenttype.NewMediaType("application/x-www-form-urlencoded")
)

// Handler handles inbound HTTP requests.
type Handler struct {
	svc  *feedback.Service
	chat chat.Client
	log  *slog.Logger
}

// NewHandler creates a Handler. If log is nil, logs are discarded.
func NewHandler(svc *feedback.Service, chatClient chat.Client, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{svc: svc, chat: chatClient, log: log}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/commands/pulsecheck", h.HandleCommand)
	e.POST("/interactions", h.HandleInteraction)

	e.GET("/admin/sessions", h.ListSessions)
	e.GET("/healthz", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type commandResponse struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// HandleCommand processes the gather-feedback slash command. The
// platform expects a fast acknowledgement, so target resolution and
// invitations run on the worker pool; the outcome lands as an
// ephemeral message.
func (h *Handler) HandleCommand(c echo.Context) error {
	if !mediaTypeMatches(c.Request(), formMediaType) {
		return c.JSON(http.StatusUnsupportedMediaType, map[string]string{
			"error": "content-type must be application/x-www-form-urlencoded",
		})
	}

	userID := c.FormValue("user_id")
	channelID := c.FormValue("channel_id")
	text := c.FormValue("text")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	cmd, err := feedback.ParseCommand(text)
	if err != nil {
		return c.JSON(http.StatusOK, commandResponse{
			ResponseType: "ephemeral",
			Text:         commandUsage(err),
		})
	}

	if err := h.svc.Dispatch(func() { h.runStart(userID, channelID, cmd) }); err != nil {
		h.log.ErrorContext(c.Request().Context(), "command.dispatch.fail", slog.String("err", err.Error()))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "temporarily unable to accept requests",
		})
	}

	return c.JSON(http.StatusOK, commandResponse{
		ResponseType: "ephemeral",
		Text:         "Okay, setting up your feedback session. I'll reach out to participants shortly.",
	})
}

func (h *Handler) runStart(userID, channelID string, cmd feedback.Command) {
	ctx := context.Background()
	sess, err := h.svc.Start(ctx, feedback.StartParams{
		InitiatorID: userID,
		ChannelID:   channelID,
		Command:     cmd,
	})
	if err != nil {
		h.log.Warn("command.start.fail",
			slog.String("user_id", userID), slog.String("err", err.Error()))
		notice := startFailureNotice(err)
		if err := h.chat.PostEphemeral(ctx, channelID, userID, notice); err != nil {
			h.log.Warn("command.notice.fail", slog.String("err", err.Error()))
		}
		return
	}
	text := fmt.Sprintf("Feedback session `%s` is underway with %d participant(s).",
		sess.ID(), len(sess.Targets()))
	if err := h.chat.PostEphemeral(ctx, channelID, userID, text); err != nil {
		h.log.Warn("command.notice.fail", slog.String("err", err.Error()))
	}
}

type interactionRequest struct {
	Type      string `json:"type"` // "open_form" or "submit"
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	TriggerID string `json:"trigger_id"`

	Sentiment string `json:"sentiment"`
	Well      string `json:"well"`
	Improve   string `json:"improve"`
}

// HandleInteraction processes button clicks and form submissions.
func (h *Handler) HandleInteraction(c echo.Context) error {
	if !mediaTypeMatches(c.Request(), jsonMediaType) {
		return c.JSON(http.StatusUnsupportedMediaType, map[string]string{
			"error": "content-type must be application/json",
		})
	}

	var req interactionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed payload"})
	}
	if req.SessionID == "" || req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "session_id and user_id are required"})
	}

	ctx := c.Request().Context()
	switch req.Type {
	case "open_form":
		if err := h.svc.OpenForm(ctx, req.SessionID, req.UserID, req.ChannelID, req.TriggerID); err != nil {
			h.log.ErrorContext(ctx, "interaction.open_form.fail",
				slog.String("session_id", req.SessionID), slog.String("err", err.Error()))
			return c.JSON(http.StatusBadGateway, map[string]string{"error": "could not open the feedback form"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})

	case "submit":
		sess, err := h.svc.SubmitFeedback(ctx, req.SessionID, req.UserID, feedback.Submission{
			Sentiment: req.Sentiment,
			Well:      req.Well,
			Improve:   req.Improve,
		})
		if err != nil {
			return h.submissionError(c, req, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status":   "ok",
			"complete": sess.IsComplete(),
		})

	default:
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unknown interaction type %q", req.Type),
		})
	}
}

func (h *Handler) submissionError(c echo.Context, req interactionRequest, err error) error {
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "this feedback session is no longer active",
		})
	case errors.Is(err, sessions.ErrDuplicateSubmission):
		return c.JSON(http.StatusConflict, map[string]string{
			"error": "you already submitted feedback for this session",
		})
	case errors.Is(err, sessions.ErrNotAParticipant):
		return c.JSON(http.StatusForbidden, map[string]string{
			"error": "you are not a participant of this session",
		})
	default:
		h.log.ErrorContext(c.Request().Context(), "interaction.submit.fail",
			slog.String("session_id", req.SessionID), slog.String("err", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "unexpected error recording your feedback",
		})
	}
}

type sessionSummary struct {
	SessionID        string `json:"session_id"`
	InitiatorID      string `json:"initiator_id"`
	ChannelID        string `json:"channel_id,omitempty"`
	Reason           string `json:"reason,omitempty"`
	State            string `json:"state"`
	Pending          int    `json:"pending"`
	Submitted        int    `json:"submitted"`
	CreatedAt        string `json:"created_at"`
	RemainingSeconds *int64 `json:"remaining_seconds,omitempty"`
}

// ListSessions returns a point-in-time snapshot of live sessions for
// diagnostics. The snapshot is a deep copy; nothing here can corrupt
// registry state.
func (h *Handler) ListSessions(c echo.Context) error {
	snap := h.svc.Registry().Snapshot()
	out := make([]sessionSummary, 0, len(snap))
	for _, sess := range snap {
		summary := sessionSummary{
			SessionID:   sess.ID(),
			InitiatorID: sess.InitiatorID(),
			ChannelID:   sess.ChannelID(),
			Reason:      sess.Reason(),
			State:       string(sess.State()),
			Pending:     len(sess.Pending()),
			Submitted:   len(sess.Submitted()),
			CreatedAt:   sess.CreatedAt().UTC().Format(time.RFC3339),
		}
		if rem, ok := sess.TimeRemaining(); ok {
			secs := int64(rem.Seconds())
			summary.RemainingSeconds = &secs
		}
		out = append(out, summary)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"count":    len(out),
		"sessions": out,
	})
}

func mediaTypeMatches(r *http.Request, want contenttype.MediaType) bool {
	got, err := contenttype.GetMediaType(r)
	return err == nil && got.Matches(want)
}

func commandUsage(err error) string {
	if errors.Is(err, feedback.ErrInvalidDuration) {
		return "The time must be a positive number of minutes."
	}
	return "I'm sorry, I didn't understand that. Use either " +
		"`/pulsecheck from @user-group [on <topic>] [for X minutes]` or " +
		"`/pulsecheck on <topic> [for X minutes]`."
}

func startFailureNotice(err error) string {
	switch {
	case errors.Is(err, chat.ErrGroupNotFound):
		return "Sorry, I can't find that user group. Please double-check the group handle."
	case errors.Is(err, chat.ErrNotPermitted):
		return "I don't have the necessary permissions for that. Please check my app settings."
	case errors.Is(err, feedback.ErrNoParticipants):
		return "I couldn't find any participants to invite."
	case errors.Is(err, sessions.ErrCapacityExceeded):
		return "Maximum concurrent session limit reached. Try again later or finish existing sessions."
	default:
		return "Sorry, an unexpected error occurred while setting up the session. Please try again."
	}
}
