package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/richardpark-msft/vigil/internal/pipeline"
	"github.com/richardpark-msft/vigil/internal/projectconfig"
	"github.com/richardpark-msft/vigil/internal/store"
	"github.com/richardpark-msft/vigil/internal/video"
	"github.com/richardpark-msft/vigil/internal/webapi"
	"github.com/richardpark-msft/vigil/internal/webserver"
)

func newServeCommand() *cobra.Command {
	var (
		port           int
		noBrowser      bool
		dbPath         string
		serveResults   string
		allowedOrigins []string
		serveProvider  string
		serveModel     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the verification dashboard and HTTP API",
		Long: `Start an HTTP server with a run dashboard and a verification API.

The dashboard lists stored runs and renders their reports. The API accepts
new verification requests (multipart video upload or server-side paths) and
exposes run history, timelines, and aggregate metrics.

Runs are stored on disk under the results directory by default. Use --db to
store them in a SQLite database instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := projectconfig.Load(".")
			if err != nil {
				return fmt.Errorf("loading project config: %w", err)
			}

			if port == 0 {
				port = cfg.Server.Port
			}
			if serveResults == "" {
				serveResults = cfg.Server.ResultsDir
			}
			if dbPath == "" {
				dbPath = cfg.Server.Database
			}
			if serveProvider == "" {
				serveProvider = cfg.Defaults.Provider
			}
			if serveModel == "" {
				serveModel = cfg.Defaults.Model
			}

			var runs store.RunStore
			if dbPath != "" {
				sqliteStore, err := store.NewSQLite(dbPath)
				if err != nil {
					return fmt.Errorf("opening run database: %w", err)
				}
				defer sqliteStore.Close() //nolint:errcheck
				runs = sqliteStore
			} else {
				runs = store.NewFileStore(serveResults)
			}

			backend, err := buildProvider(cfg, serveProvider, serveModel)
			if err != nil {
				return err
			}

			factory := func() webapi.VerificationPipeline {
				return pipeline.New(backend, video.NewFFmpeg(), buildRecognizer(cfg),
					pipeline.WithModel(serveModel))
			}

			api := webapi.NewHandlers(factory, webapi.NewMemoryTaskStore(), runs)

			server, err := webserver.New(webserver.Config{
				Port:           port,
				NoBrowser:      noBrowser,
				AllowedOrigins: allowedOrigins,
				Logger:         slog.Default(),
			}, api, runs)
			if err != nil {
				return err
			}

			return server.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from project config)")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the dashboard in a browser")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database for run storage (default: file store)")
	cmd.Flags().StringVar(&serveResults, "results-dir", "", "Directory for file-based run storage")
	cmd.Flags().StringSliceVar(&allowedOrigins, "origin", nil, "Allowed CORS origin (can be repeated)")
	cmd.Flags().StringVar(&serveProvider, "provider", "", "LLM provider for API-triggered verifications")
	cmd.Flags().StringVar(&serveModel, "model", "", "Model for API-triggered verifications")

	return cmd
}
