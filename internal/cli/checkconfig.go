package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/serverpulse/agent/internal/client"
	"github.com/serverpulse/agent/internal/config"
)

func checkConfigCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration file and print its digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return client.NewConfigurationError(err)
			}

			cmd.Println("Config OK")
			cmd.Println("Agent:", cfg.Agent.Name)
			cmd.Println("Server:", cfg.Server.URL)
			cmd.Println("Websocket:", cfg.Server.WebsocketURL)
			cmd.Println("Report interval:", cfg.Report.Interval.Std())
			cmd.Println("Digest:", fmt.Sprintf("%016x", cfg.Digest))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agent.yaml", "Path to the agent configuration file")
	return cmd
}
