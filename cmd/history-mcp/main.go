package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/flatpee/flatpee-bot/internal/mcp"
)

const version = "v1.0.0"

func main() {
	apiURL := os.Getenv("BOT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:9876"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol, logs go to stderr
	fmt.Fprintf(os.Stderr, "[MCP] Serving history tools for %s\n", apiURL)

	server := mcp.NewServer(mcp.NewClient(apiURL), version)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
