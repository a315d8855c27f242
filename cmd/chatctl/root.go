package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/onnwee/chatkeeper/bot"
	"github.com/onnwee/chatkeeper/config"
	"github.com/onnwee/chatkeeper/logging"
	"github.com/onnwee/chatkeeper/stackchat"
)

// app carries the loaded config and flag overrides shared by all subcommands.
type app struct {
	cfg      *config.Config
	project  string
	loginURL string
	chatURL  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "Inspect and drive the chat bot by hand",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.project, "project", "", "project name used in state links (default $PROJECT_NAME)")
	flags.StringVar(&a.loginURL, "login-url", "", "login form URL (default $SE_LOGIN_URL)")
	flags.StringVar(&a.chatURL, "chat-url", "", "chat site base URL (default $SE_CHAT_URL)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		searchCommand(a),
		transcriptCommand(a),
		sendCommand(a),
		stateCommand(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.project == "" {
		a.project = cfg.ProjectName
	}
	if a.loginURL == "" {
		a.loginURL = cfg.LoginURL
	}
	if a.chatURL == "" {
		a.chatURL = cfg.ChatURL
	}
	a.cfg = cfg
	logging.Setup(logging.Options{Level: a.logLevel, Output: cmd.ErrOrStderr()}, nil)
	return nil
}

// connect logs in and returns a ready client.
func (a *app) connect(ctx context.Context) (*stackchat.Client, error) {
	if err := a.cfg.ValidateChatReady(); err != nil {
		return nil, err
	}
	session, err := stackchat.NewSession(a.cfg.Email, a.cfg.Password, stackchat.Endpoints{Login: a.loginURL, Chat: a.chatURL})
	if err != nil {
		return nil, err
	}
	if err := session.Connect(ctx, "chatctl"); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return stackchat.NewClient(session), nil
}

func (a *app) codec() (*bot.Codec, error) {
	if a.project == "" {
		return nil, errors.New("project name required: pass --project or set PROJECT_NAME")
	}
	return bot.NewCodec(a.project, a.cfg.StateHost, a.cfg.StateLegacyHosts...), nil
}

// newBot connects and recovers state from the bot's own messages.
func (a *app) newBot(ctx context.Context) (*bot.Bot, error) {
	codec, err := a.codec()
	if err != nil {
		return nil, err
	}
	client, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	b := bot.New(client, codec, bot.Options{MaxAge: a.cfg.KeepAliveMaxAge, SearchPageSize: a.cfg.SearchPageSize})
	if _, err := b.Recover(ctx); err != nil {
		return nil, err
	}
	return b, nil
}
