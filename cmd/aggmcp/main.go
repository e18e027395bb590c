// Package main is the entry point for the aggregating MCP proxy (aggmcp).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fussraider/tool-search-tools-mcp/cmd/aggmcp/app"
	"github.com/fussraider/tool-search-tools-mcp/pkg/logger"
)

func main() {
	logger.Initialize()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		logger.Errorf("Error executing command: %v", err)
		os.Exit(1)
	}
}
