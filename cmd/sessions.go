package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"speaksmart/internal/config"
	"speaksmart/internal/session"
)

var errMemoryStore = errors.New("sessions commands need SESSION_STORE=file: the memory store lives only inside the running bot")

type sessionView struct {
	ChatID    int64     `json:"chat_id"`
	State     string    `json:"state"`
	Style     string    `json:"style,omitempty"`
	Addressee string    `json:"addressee,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newSessionsCmd(v *viper.Viper) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and clean the persisted conversation sessions",
	}

	sessionsCmd.AddCommand(
		newSessionsListCmd(v),
		newSessionsPurgeCmd(v),
	)

	return sessionsCmd
}

func newSessionsListCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List live sessions sorted by chat id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openAdminStore(v)
			if err != nil {
				return err
			}
			entries, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			views := make([]sessionView, 0, len(entries))
			for _, e := range entries {
				views = append(views, sessionView{
					ChatID:    e.ChatID,
					State:     e.Session.State.String(),
					Style:     string(e.Session.Style),
					Addressee: e.Session.Addressee,
					UpdatedAt: e.Session.UpdatedAt,
				})
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}
			if len(views) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "CHAT ID\tSTATE\tSTYLE\tUPDATED")
			for _, view := range views {
				style := view.Style
				if style == "" {
					style = "-"
				}
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", view.ChatID, view.State, style, view.UpdatedAt.UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print sessions as JSON")

	return listCmd
}

func newSessionsPurgeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove sessions older than SESSION_TTL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openAdminStore(v)
			if err != nil {
				return err
			}
			n, err := store.Purge(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge sessions: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired sessions\n", n)
			return err
		},
	}
}

func openAdminStore(v *viper.Viper) (session.Admin, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if cfg.Session.Store == config.StoreMemory {
		return nil, errMemoryStore
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open sessions: %w", err)
	}
	return store, nil
}
