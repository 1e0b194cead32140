package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/solarsim/internal/api"
	"github.com/talgya/solarsim/internal/engine"
	"github.com/talgya/solarsim/internal/persistence"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Step a city in real time behind the observation API",
	Long: "Builds one city, steps it at server.tick_interval and serves its state over HTTP " +
		"and a websocket record stream until interrupted. The server stays up after the model stops.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := modelParams(cmd)
		if err != nil {
			return err
		}

		m, err := engine.NewCityModel(p, nil)
		if err != nil {
			return eris.Wrap(err, "build city")
		}
		eng := engine.NewEngine(m)
		if cfg.Server.TickInterval > 0 {
			eng.SetInterval(cfg.Server.TickInterval)
		}

		var db *persistence.DB
		if noDB, _ := cmd.Flags().GetBool("no-db"); !noDB {
			db, err = openStore()
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck
			slog.Info("database opened", "path", cfg.Store.Path)
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}
		srv := &api.Server{
			Eng:            eng,
			DB:             db,
			Port:           port,
			AdminKey:       cfg.Server.AdminKey,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RateLimit:      cfg.Server.RateLimit,
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			err := eng.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			return srv.Serve(ctx)
		})

		err = g.Wait()
		eng.Stop()

		if db != nil {
			var id string
			var saveErr error
			eng.View(func(m *engine.CityModel) {
				id, saveErr = db.SaveModel(m, "serve")
			})
			if saveErr != nil {
				slog.Error("final save failed", "error", saveErr)
			} else {
				slog.Info("final state saved", "run", id)
			}
		}
		return err
	},
}

func init() {
	addModelFlags(serveCmd)
	serveCmd.Flags().Int("port", 0, "HTTP port (overrides server.port)")
	serveCmd.Flags().Bool("no-db", false, "run without the database (disables snapshots)")
	rootCmd.AddCommand(serveCmd)
}
