package cli

import (
	"github.com/spf13/cobra"

	"github.com/serverpulse/agent/internal/client"
	"github.com/serverpulse/agent/internal/config"
	"github.com/serverpulse/agent/internal/observability/log"
	"github.com/serverpulse/agent/internal/store"
)

func loginCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "login <token>",
		Short: "Save the auth token the agent presents to the control server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return client.NewConfigurationError(err)
			}

			logger := log.New(log.ParseLevel(cfg.Logging.Level))

			st, err := store.Open(cfg.Store.Path, logger)
			if err != nil {
				return client.NewIOError(err)
			}
			defer func() { _ = st.Close() }()

			if err := st.SaveToken(args[0]); err != nil {
				return client.NewIOError(err)
			}

			cmd.Println("Token saved.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agent.yaml", "Path to the agent configuration file")
	return cmd
}
