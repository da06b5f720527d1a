package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bravozulu-films/bzf/internal/notify"
	"github.com/bravozulu-films/bzf/internal/server"
	"github.com/bravozulu-films/bzf/internal/studio"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and notification WebSocket",
		Long: `Start the server.

With redisURL configured, notifications fan out through Redis so every
instance reaches its own WebSocket clients. With genaiApiKey configured,
the studio generates with Gemini; otherwise studio generation answers 503.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Infow("bzf starting", "version", server.Version)

	// Root context cancelled on SIGINT or SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, db, err := setup(ctx, log)
	if err != nil {
		return err
	}
	defer db.Close()

	hub := notify.NewHub(log)
	opts := server.Options{Hub: hub}

	var relay *notify.RedisRelay
	if cfg.RedisURL != "" {
		relay, err = notify.NewRedisRelay(ctx, cfg.RedisURL, hub, log)
		if err != nil {
			return err
		}
		defer func() { _ = relay.Close() }()
		opts.Publisher = relay
		log.Info("redis relay connected")
	}

	if cfg.StudioEnabled() {
		gen, err := studio.NewGemini(ctx, cfg.GenAIAPIKey, cfg.GenAITextModel, cfg.GenAIImageModel)
		if err != nil {
			return fmt.Errorf("studio: %w", err)
		}
		opts.Generator = gen
		log.Infow("studio enabled", "text_model", cfg.GenAITextModel, "image_model", cfg.GenAIImageModel)
	} else {
		log.Warn("genaiApiKey not set, studio generation disabled")
	}

	srv := server.New(cfg, db, opts, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("bzf stopped")
	return nil
}
