// Command chatkeeper runs the chat bot service.
// It:
//   - Loads configuration and initializes structured logging (teed into the /log ring).
//   - Learns the project name from config or the first request to its *.glitch.* host.
//   - Logs in to chat after a short delay, recovers room state from the bot's own
//     messages, and keeps it alive on a jittered timer.
//   - Exposes the HTTP surface: log image, pixel, feed, badge, /healthz, /readyz, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/chatkeeper/bot"
	"github.com/onnwee/chatkeeper/config"
	"github.com/onnwee/chatkeeper/logging"
	"github.com/onnwee/chatkeeper/server"
	"github.com/onnwee/chatkeeper/stackchat"
	"github.com/onnwee/chatkeeper/telemetry"
)

var version = "dev"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	logCloser := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile}, logging.Default)
	defer func() {
		if err := logCloser.Close(); err != nil {
			slog.Error("failed to close log file", slog.Any("err", err))
		}
	}()

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("chatkeeper", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	project := server.NewProjectName(cfg.ProjectName)
	deps := server.Deps{Project: project, Ring: logging.Default, PixelURL: cfg.PixelURL}

	if err := cfg.ValidateChatReady(); err != nil {
		slog.Warn("chat disabled", slog.Any("err", err))
	} else {
		session, err := stackchat.NewSession(cfg.Email, cfg.Password, stackchat.Endpoints{Login: cfg.LoginURL, Chat: cfg.ChatURL})
		if err != nil {
			slog.Error("failed to create chat session", slog.Any("err", err))
			os.Exit(1)
		}
		deps.Chat = session
		go runChat(ctx, cfg, project, session)
	}

	go func() {
		if err := server.Start(ctx, deps, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
			stop()
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}

// runChat waits for the project name, logs in after the configured delay, then recovers
// room state and starts the keep-alive timer. Login is attempted once.
func runChat(ctx context.Context, cfg *config.Config, project *server.ProjectName, session *stackchat.Session) {
	select {
	case <-ctx.Done():
		return
	case <-project.Named():
	}
	name := project.Get()

	client := stackchat.NewClient(session)
	b := bot.New(client, bot.NewCodec(name, cfg.StateHost, cfg.StateLegacyHosts...), bot.Options{
		MaxAge:         cfg.KeepAliveMaxAge,
		SearchPageSize: cfg.SearchPageSize,
	})

	slog.Info("got project name, connecting to chat", slog.String("project", name), slog.Duration("delay", cfg.ConnectDelay))
	select {
	case <-ctx.Done():
		return
	case <-time.After(cfg.ConnectDelay):
	}

	if err := session.Connect(ctx, name); err != nil {
		slog.Error("failed to connect to chat",
			slog.Any("err", err),
			slog.Bool("terminal", stackchat.IsTerminal(err)))
		return
	}

	n, err := b.Recover(ctx)
	if err != nil {
		slog.Error("failed to recover room state", slog.Any("err", err))
	} else {
		slog.Info("bot initialized", slog.Int("rooms", n))
	}
	if err := b.KeepAlive(ctx); err != nil {
		slog.Warn("initial keep-alive pass failed", slog.Any("err", err))
	}
	bot.StartKeepAlive(ctx, b, cfg.KeepAliveInterval)
}
