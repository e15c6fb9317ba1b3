package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/credlock/credlock/internal/di"
)

func main() {
	a, err := di.InitializeApp()
	if err != nil {
		log.Fatal(err)
	}
	go func() {
		a.Logger.Info("server starting", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	// Drain HTTP first so in-flight ceremonies finish, then flush telemetry,
	// then release the clients underneath.
	ctx, cancel := context.WithTimeout(context.Background(), a.ShutdownTimeout())
	defer cancel()

	if err := a.Server.Shutdown(ctx); err != nil {
		a.Logger.Error("failed to shutdown http server", "error", err)
	}
	if a.Observability != nil {
		if err := a.Observability.Shutdown(ctx); err != nil {
			a.Logger.Error("failed to shutdown observability", "error", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("failed to close redis client", "error", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Logger.Error("failed to close database connection", "error", err)
			}
		}
	}
}
