package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// HandleTerminationProcess возвращает контекст, который отменяется по SIGINT или SIGTERM.
func HandleTerminationProcess(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
