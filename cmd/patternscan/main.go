// Command patternscan detects reversal chart patterns in daily candles.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pattern-scanner/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
