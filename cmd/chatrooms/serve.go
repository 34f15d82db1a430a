package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/devaloi/chatrooms/internal/config"
	"github.com/devaloi/chatrooms/internal/handler"
	"github.com/devaloi/chatrooms/internal/hub"
	"github.com/devaloi/chatrooms/internal/middleware"
	"github.com/devaloi/chatrooms/internal/store"
)

var serveConfig config.Config

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat room service",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		serveConfig = config.Load()
		// The configured level applies unless --log-level was given.
		if cmd.Flags().Changed("log-level") {
			return nil
		}
		return setupLogging(serveConfig.LogLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, serveConfig)
	},
}

func serve(ctx context.Context, cfg config.Config) error {
	s, err := store.Open(cfg)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer s.Close()

	h := hub.New(s, hub.Options{
		MaxRooms:     cfg.MaxRooms,
		MaxHistory:   cfg.MaxHistory,
		EmptyRoomTTL: cfg.EmptyRoomTTL,
	})
	go h.Run()
	defer h.Stop()

	mux := http.NewServeMux()
	handler.Routes(mux, h, cfg.MaxSaved)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.Logging(middleware.CORS(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().
			Str("addr", server.Addr).
			Str("store", cfg.StoreDriver).
			Str("prefix", handler.APIPrefix).
			Msg("chatrooms listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
