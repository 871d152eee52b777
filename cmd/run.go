package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"speaksmart/internal/config"
	"speaksmart/internal/conversation"
	"speaksmart/internal/gemini"
	"speaksmart/internal/health"
	"speaksmart/internal/logutil"
	"speaksmart/internal/session"
	"speaksmart/internal/telegram"
)

type sessionStore interface {
	session.Store
	session.Admin
}

func runBot(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	logger, err := logutil.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("cannot load state: %w", err)
	}
	logger.Info("session_store_ready", "store", cfg.Session.Store, "file", cfg.Session.File, "ttl", cfg.Session.TTL.String())

	if !cfg.Gemini.Enabled() {
		logger.Warn("gemini_api_key_missing", "hint", "set GEMINI_API_KEY; rewrites will fail until then")
	}
	client := gemini.New(cfg.Gemini.APIKey,
		gemini.WithEndpoint(cfg.Gemini.Endpoint),
		gemini.WithTimeout(cfg.Gemini.Timeout),
		gemini.WithLogger(logger),
	)

	if addr := health.ListenAddr(strconv.Itoa(cfg.Health.Port)); addr != "" {
		if _, err := health.StartServer(ctx, logger, addr); err != nil {
			logger.Error("health_server_failed", "addr", addr, "error", err.Error())
		}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("cannot start bot: %w", err)
	}
	bot.Debug = cfg.Telegram.Debug
	logger.Info("telegram_authorized", "username", bot.Self.UserName)

	rt := telegram.New(bot, telegram.Options{
		PollTimeout:   cfg.Telegram.PollTimeout,
		MaxConcurrent: cfg.Workers,
		Logger:        logger,
	})
	engine := conversation.NewEngine(store, client,
		conversation.WithLogger(logger),
		conversation.WithTypingHook(rt.Typing),
		conversation.WithHealthPort(cfg.Health.Port),
	)

	go session.RunJanitor(ctx, store, janitorInterval(cfg.Session.TTL), func(n int, err error) {
		if err != nil {
			logger.Warn("session_purge_failed", "error", err.Error())
			return
		}
		if n > 0 {
			logger.Info("session_purged", "count", n)
		}
	})

	return rt.Run(ctx, engine)
}

func openStore(cfg config.Config) (sessionStore, error) {
	opts := session.Options{TTL: cfg.Session.TTL, MaxSessions: cfg.Session.MaxSessions}
	if cfg.Session.Store == config.StoreMemory {
		return session.NewMemoryStore(opts), nil
	}
	return session.NewFileStore(cfg.Session.File, opts)
}

// janitorInterval sweeps four times per TTL, between one minute and one hour.
// A zero TTL disables the sweep.
func janitorInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	d := ttl / 4
	if d < time.Minute {
		d = time.Minute
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}
