package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"clarvis-be/internal/cli"
)

func main() {
	// Ctrl-C stops streaming or watching; generations keep running server-side
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cli.Execute(ctx)
}
