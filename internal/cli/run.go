package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/serverpulse/agent/internal/client"
	"github.com/serverpulse/agent/internal/config"
	"github.com/serverpulse/agent/internal/observability/log"
	"github.com/serverpulse/agent/internal/store"
)

func runCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent against the configured control server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return client.NewConfigurationError(err)
			}

			logger := log.New(log.ParseLevel(cfg.Logging.Level))
			logger.Info("starting agent",
				log.String("name", cfg.Agent.Name),
				log.String("server", cfg.Server.URL),
				log.Uint64("config_digest", cfg.Digest))

			st, err := store.Open(cfg.Store.Path, logger)
			if err != nil {
				return client.NewIOError(err)
			}
			defer func() { _ = st.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			cl := client.New(client.FromFile(cfg), st, logger)
			go func() {
				<-ctx.Done()
				_ = cl.Close()
			}()

			if cerr := cl.Run(ctx); cerr != nil {
				logger.Error("agent stopped",
					log.String("kind", cerr.Kind().String()),
					log.Error(cerr))
				return cerr
			}

			logger.Info("agent stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agent.yaml", "Path to the agent configuration file")
	return cmd
}
