package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"go-chat-stream/internal/infrastructure/auth"
	"go-chat-stream/internal/infrastructure/config"
	"go-chat-stream/internal/infrastructure/hub"
	"go-chat-stream/internal/infrastructure/logger"
	"go-chat-stream/internal/infrastructure/server"
	"go-chat-stream/internal/store"
)

func main() {
	ctx := context.Background()
	sctx := WithSignal(ctx)

	cfg := config.Load()
	log := logger.NewLogrusLogger(cfg.Logger())

	hubInstance := hub.New(log)

	// Start the hub before any route can attach a connection
	if err := hubInstance.Start(ctx); err != nil {
		log.Errorf("failed to start hub: %v", err)
		return
	}
	log.Infof(
		"hub started before router initialization, running status: %v",
		hubInstance.IsRunning(),
	)

	st, err := store.Open(ctx, cfg.DBPath, log)
	if err != nil {
		log.Errorf("failed to open store: %v", err)
		return
	}

	authenticator := auth.NewTokenAuthenticator(cfg.JWTSecret, cfg.TokenTTL, log)

	router := InitRouter(cfg, hubInstance, st, authenticator, log)
	httpSrv := server.NewHTTPServer(cfg.Addr, router)
	app := newApplication(log, httpSrv, hubInstance, st)
	if err := app.Run(sctx); err != nil {
		log.Errorf("failed to run application: %v", err)
	}
}

type Application struct {
	logger  logger.Logger
	httpSrv server.Server
	hub     *hub.Hub
	store   *store.Store
}

func newApplication(
	logger logger.Logger,
	httpSrv *server.HTTPServer,
	hubInstance *hub.Hub,
	st *store.Store,
) *Application {
	return &Application{
		logger:  logger.WithField("app", "chat-stream"),
		httpSrv: httpSrv,
		hub:     hubInstance,
		store:   st,
	}
}

func (app *Application) Run(ctx context.Context) error {
	eg := errgroup.Group{}

	eg.Go(func() error {
		return app.httpSrv.Start(ctx)
	})

	eg.Go(func() error {
		<-ctx.Done()

		gracefulshutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			time.Duration(5*time.Second),
		)
		defer cancel()

		// Stop hub first so open streams drain before the server exits
		if err := app.hub.Stop(gracefulshutdownCtx); err != nil {
			app.logger.Errorf("failed to stop hub: %v", err)
		}

		if err := app.httpSrv.Stop(gracefulshutdownCtx); err != nil {
			return err
		}

		return app.store.Close()
	})

	err := eg.Wait()
	if err != nil {
		return err
	}

	return nil
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		<-sigc

		cancel()
	}()

	return ctx
}
