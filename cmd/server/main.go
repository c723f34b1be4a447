package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sharedspace/server/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Config{ClientDir: os.Getenv("CLIENT_DIR")}); err != nil {
		log.Fatalf("%v", err)
	}
}
