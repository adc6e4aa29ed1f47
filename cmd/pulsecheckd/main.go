// Command pulsecheckd runs the feedback-session daemon: the HTTP
// surface for slash commands and interactions, the in-memory session
// registry, and the timers that expire sessions.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/pulsebot/pulsecheck/analysis"
	"github.com/pulsebot/pulsecheck/analysis/openai"
	"github.com/pulsebot/pulsecheck/chat/slack"
	"github.com/pulsebot/pulsecheck/config"
	"github.com/pulsebot/pulsecheck/feedback"
	"github.com/pulsebot/pulsecheck/httpapi"
	"github.com/pulsebot/pulsecheck/internal/logctx"
	"github.com/pulsebot/pulsecheck/reporting"
	"github.com/pulsebot/pulsecheck/scheduler"
	"github.com/pulsebot/pulsecheck/sessions"
	"github.com/pulsebot/pulsecheck/workers"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "pulsecheckd",
		Short:         "Time-boxed feedback session daemon",
		Long:          "pulsecheckd collects structured feedback from chat user groups or channels in time-boxed sessions and posts an aggregated report when everyone has answered or the clock runs out.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.SlackBotToken == "" {
		return errors.New("SLACK_BOT_TOKEN is required")
	}

	log := slog.New(logctx.Handler{
		Handler: slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	})

	chatOpts := []slack.Option{slack.WithLogger(log)}
	if cfg.SlackBaseURL != "" {
		chatOpts = append(chatOpts, slack.WithBaseURL(cfg.SlackBaseURL))
	}
	chatClient, err := slack.New(cfg.SlackBotToken, chatOpts...)
	if err != nil {
		return err
	}

	var analyzer analysis.Analyzer
	if cfg.OpenAIAPIKey != "" {
		ai, err := openai.New(cfg.OpenAIAPIKey,
			openai.WithModel(cfg.OpenAIModel),
			openai.WithBaseURL(cfg.OpenAIBaseURL),
			openai.WithLogger(log),
		)
		if err != nil {
			return err
		}
		analyzer = ai
	} else {
		log.Warn("analysis backend not configured; reports will use self-reported sentiment only")
	}

	pool := workers.New(cfg.WorkerPoolSize, workers.WithLogger(log))
	sched := scheduler.New(pool, scheduler.WithLogger(log))
	registry := sessions.NewRegistry(
		sessions.WithMaxSessions(cfg.MaxConcurrentSessions),
		sessions.WithRegistryLogger(log),
	)

	svc := feedback.NewService(registry, sched, pool, chatClient,
		reporting.NewBuilder(analyzer, log),
		feedback.WithDefaultDuration(cfg.DefaultSessionDuration()),
		feedback.WithReminderLead(cfg.ReminderLead()),
		feedback.WithServiceLogger(log),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogContext)

	httpapi.NewHandler(svc, chatClient, log).RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server.listen", slog.String("addr", cfg.ListenAddr))
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	// Drain order matters: stop accepting requests, then stop firing
	// timers, then let in-flight pool work finish.
	log.Info("server.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("server.shutdown.fail", slog.String("err", err.Error()))
	}
	sched.Shutdown()
	pool.Shutdown()
	return nil
}

// requestLogContext tags each request's context so log records carry
// the request id, method, and path.
func requestLogContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := logctx.WithRequestData(req.Context(), &logctx.RequestData{
			RequestID:  c.Response().Header().Get(echo.HeaderXRequestID),
			Method:     req.Method,
			Path:       req.URL.Path,
			RemoteAddr: c.RealIP(),
		})
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}
