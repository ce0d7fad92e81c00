package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskboard/api/internal/app"
	"taskboard/api/internal/export"
	"taskboard/api/internal/search"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
)

func newServeCmd(load loader) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if !skipMigrations {
				store.SetMigrationLogger(logger)
				if err := store.ApplyMigrations(ctx, db); err != nil {
					return err
				}
			}
			dataStore := store.NewPostgresStore(db)

			sessions, err := session.NewRedisStore(cfg.RedisURL)
			if err != nil {
				return err
			}
			defer sessions.Close()

			var meiliClient *search.Meili
			if strings.TrimSpace(cfg.MeiliURL) != "" {
				meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger.WithField("component", "meili"))
				defer meiliClient.Close()
			}
			searchService := search.NewService(meiliClient, search.NewPgFTS(db), logger.WithField("component", "search"))
			go searchService.ReindexAll(ctx)

			var objects export.ObjectStore
			if cfg.S3.Enabled() {
				minioStore, err := export.NewMinioStore(ctx, export.MinioOptions{
					Endpoint:  cfg.S3.Endpoint,
					AccessKey: cfg.S3.AccessKey,
					SecretKey: cfg.S3.SecretKey,
					Bucket:    cfg.S3.Bucket,
					UseSSL:    cfg.S3.UseSSL,
				})
				if err != nil {
					logger.WithError(err).Warn("object storage unavailable, exports will be returned inline")
				} else {
					objects = minioStore
				}
			}
			exportService := export.NewService(dataStore, objects, logger.WithField("component", "export"))

			service := app.New(cfg, dataStore, sessions, searchService, exportService, logger)
			httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.MetricsPath, logger)
			httpServer.AddReadinessCheck("redis", sessions.Ping)

			server := &http.Server{
				Addr:              cfg.Addr,
				Handler:           httpServer.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.WithField("addr", cfg.Addr).Info("taskboard api listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on start")
	return cmd
}
