package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-auth-client/devserver"
)

func main() {
	cfg, err := devserver.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("devserver config: %v", err)
	}

	srv := devserver.New(cfg)
	if _, err := srv.Seed(); err != nil {
		log.Fatalf("devserver seed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Listen(ctx); err != nil {
		log.Fatalf("devserver: %v", err)
	}
}
