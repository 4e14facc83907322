package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tphakala/hackrf-stream/cmd"
	"github.com/tphakala/hackrf-stream/internal/conf"
)

func main() {
	// Load the configuration
	settings, err := conf.Load(os.Getenv("HACKRF_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cmd.Execute(ctx, settings)
	stop()
	os.Exit(code)
}
