package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tgdrive/dropshare/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.New().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
