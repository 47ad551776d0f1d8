// Package cli implements the botctl operator commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/flatpee/flatpee-bot/internal/biz/repo"
	"github.com/flatpee/flatpee-bot/internal/conf"
	"github.com/flatpee/flatpee-bot/internal/data"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	driverFlag string
	sqliteFlag string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "botctl",
	Short: "Operate a flatpee-bot deployment",
	Long:  "Inspect stored conversation history and send messages as the bot, using the same .env as the bot process.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "Store driver: mongo or sqlite (default: $STORE_DRIVER)")
	RootCmd.PersistentFlags().StringVar(&sqliteFlag, "sqlite", "", "SQLite path (default: $SQLITE_PATH)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func loadConfig() *conf.Config {
	cfg := conf.LoadFromEnv()
	if driverFlag != "" {
		cfg.Store.Driver = driverFlag
	}
	if sqliteFlag != "" {
		cfg.Store.SQLitePath = sqliteFlag
	}
	return cfg
}

func openStore(ctx context.Context, cfg *conf.Config) (repo.ConversationRepo, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	return data.NewConversationRepo(ctx, cfg.Store)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
