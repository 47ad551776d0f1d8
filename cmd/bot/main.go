package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flatpee/flatpee-bot/internal/api"
	"github.com/flatpee/flatpee-bot/internal/biz"
	"github.com/flatpee/flatpee-bot/internal/conf"
	"github.com/flatpee/flatpee-bot/internal/data"
	"github.com/flatpee/flatpee-bot/internal/infra/feishu"
	"github.com/flatpee/flatpee-bot/internal/server"
	"github.com/flatpee/flatpee-bot/internal/service"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx := context.Background()

	// Knowledge corpus is read once; edits need a restart
	knowledge, err := data.LoadKnowledge(cfg.Context.KnowledgeDir)
	if err != nil {
		log.Fatalf("Failed to load knowledge: %v", err)
	}

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	if cfg.Bot.UserID != "" {
		feishuClient.SetBotOpenID(cfg.Bot.UserID)
	}

	// Initialize repository layer (store ping failure is fatal)
	repos, err := data.NewRepositories(ctx, cfg, feishuClient, knowledge)
	if err != nil {
		log.Fatalf("Failed to create repositories: %v", err)
	}
	fmt.Printf("[Bot] Store: %s, provider: %s\n", cfg.Store.Driver, repos.Generation.Name())

	// Initialize usecase layer
	ucs := biz.NewUsecases(cfg, repos.Conversation, repos.Generation)

	// Initialize service layer
	convSvc := service.NewConversationService(ucs.History, ucs.Decision, repos.Generation, repos.Message, cfg.Prompts.Responses)
	convSvc.SetBotID(cfg.Bot.UserID)
	convSvc.SetReplyInGroups(cfg.Feishu.ReplyInGroups)

	// Initialize admin API
	var apiServer *api.Server
	if cfg.API.Port > 0 {
		apiServer = api.NewServer(repos.Conversation, ucs.History, ucs.Decision, convSvc, repos.Generation.Name(), cfg.API.Port)
		fmt.Printf("[Bot] Admin API at http://127.0.0.1:%d (set BOT_API_URL for history-mcp)\n", apiServer.GetPort())
		go func() {
			if err := apiServer.Start(); err != nil {
				fmt.Printf("[Bot] API server error: %v\n", err)
			}
		}()
	}

	// Initialize server
	srv := server.NewFeishuServer(feishuClient, convSvc)
	srv.SetDebug(cfg.Debug)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		srv.Stop()
		if apiServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			apiServer.Stop(shutdownCtx)
			cancel()
		}
		if err := repos.Close(); err != nil {
			fmt.Printf("[Bot] Failed to close store: %v\n", err)
		}
		os.Exit(0)
	}()

	fmt.Println("Starting flatpee-bot...")
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
