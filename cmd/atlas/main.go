// Package main is the entrypoint of the atlas location service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/plusmaps/atlas/internal/app/runtime"
)

func main() {
	_ = godotenv.Load() // allow .env for local runs

	cfg, err := runtime.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	app, err := runtime.NewApplication(cfg, cfg.Database.MigrateOnStart)
	if err != nil {
		log.Fatalf("initialize application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		app.Log().Infof("received %s, shutting down", sig)
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			app.Log().Fatalf("application failed: %v", err)
		}
	}

	if err := app.Shutdown(context.Background()); err != nil {
		app.Log().Errorf("shutdown error: %v", err)
	}
}
