package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/esgportal/apiserver/config"
	"github.com/esgportal/apiserver/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "esgportal",
	Short: "ESG ratings portal API",
	Long: `Backend for the ESG ratings portal: accounts, the public company
catalog, report entitlements and the gated report gateway.`,
	SilenceUsage: true,
}

// Execute runs the root command. Commands are cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// setup loads configuration and returns the process logger along with a
// context that carries it.
func setup(ctx context.Context) (config.Config, zerolog.Logger, context.Context) {
	cfg := config.LoadConfig()
	log := logger.New(cfg.Log)
	return cfg, log, log.WithContext(ctx)
}
