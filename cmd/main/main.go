package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dvmap-service/internal/config"
	"dvmap-service/internal/metrics"
	"dvmap-service/internal/standardize/handler"
	"dvmap-service/internal/standardize/loader"
	"dvmap-service/internal/standardize/model"
	"dvmap-service/internal/store"
	serverhttp "dvmap-service/server/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// логгер ещё не настроен
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("config")
	}
	logger := config.SetupLogger(cfg, os.Stdout)

	sc, rules, err := loader.Open(loader.Paths{
		Schema:   cfg.SchemaPath,
		Clusters: cfg.ClustersPath,
		Rules:    cfg.RulesPath,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("schema", cfg.SchemaPath).Msg("load schema")
	}
	logger.Info().
		Str("schema_version", sc.Version()).
		Int("dvs", sc.Len()).
		Int("keys", sc.KeyCount()).
		Int("rules", rules.Len()).
		Msg("schema loaded")

	m := metrics.New()
	m.SetSchemaSize(sc.Len())

	deps := handler.Deps{
		Schema: sc,
		Rules:  rules,
		Options: model.Options{
			Match: model.MatchOptions{
				EnableFuzzy: cfg.EnableFuzzy,
				Threshold:   cfg.FuzzyThreshold,
				Margin:      cfg.MinSeparation,
			},
			InferMetadata:   true,
			ReviewThreshold: cfg.ReviewThreshold,
			Workers:         cfg.Workers,
		},
		Metrics: m,
	}

	if cfg.ArchivePath != "" {
		st, err := store.Open(context.Background(), cfg.ArchivePath)
		if err != nil {
			logger.Fatal().Err(err).Str("archive", cfg.ArchivePath).Msg("open archive")
		}
		defer st.Close()
		deps.Store = st
	}

	r := serverhttp.NewRouter(cfg, deps, logger)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info().Str("addr", cfg.Addr()).Msg("server starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info().Msg("bye")
}
