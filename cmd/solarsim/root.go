// Command solarsim runs the solar-adoption city model.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/talgya/solarsim/internal/config"
	"github.com/talgya/solarsim/internal/persistence"
)

var (
	cfg     *config.Config
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "solarsim",
	Short: "Agent-based simulation of household solar adoption",
	Long: "Generates a zoned city of households on a grid and steps their solar panel adoption " +
		"decisions under peer influence, income, education and a one-time subsidy.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log, os.Stderr); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./solarsim.yaml)")
}

// openStore opens the run database named in the config.
func openStore() (*persistence.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, eris.Wrap(err, "create store directory")
	}
	db, err := persistence.Open(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "open store %s", cfg.Store.Path)
	}
	return db, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
