package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"speaksmart/internal/config"
)

func Execute() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	rootCmd := &cobra.Command{
		Use:           "speaksmart",
		Short:         "SpeakSmart: a Telegram bot that rewrites text in the style you need",
		Long:          "speaksmart runs a Telegram bot that rewrites your messages through Gemini in a business, academic, personal or simplified style, or in a style picked for the addressee you describe.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd, v)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "log level: debug, info, warn or error (env LOG_LEVEL)")
	flags.String("log-format", "", "log format: text or json (env LOG_FORMAT)")
	flags.String("state-file", "", "session file; a .toml extension selects TOML (env STATE_FILE)")
	flags.String("session-store", "", "session store: file or memory (env SESSION_STORE)")
	flags.String("session-ttl", "", "how long an untouched session survives (env SESSION_TTL)")
	rootCmd.Flags().String("port", "", "health check port, 0 disables (env PORT)")
	rootCmd.Flags().Bool("debug", false, "log Telegram API traffic (env BOT_DEBUG)")

	for key, name := range map[string]string{
		"logging.level":  "log-level",
		"logging.format": "log-format",
		"session.file":   "state-file",
		"session.store":  "session-store",
		"session.ttl":    "session-ttl",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
	_ = v.BindPFlag("health.port", rootCmd.Flags().Lookup("port"))
	_ = v.BindPFlag("telegram.debug", rootCmd.Flags().Lookup("debug"))

	rootCmd.AddCommand(
		newVersionCmd(),
		newSessionsCmd(v),
	)

	return rootCmd
}
