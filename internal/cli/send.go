package cli

import (
	"fmt"
	"strings"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
	"github.com/flatpee/flatpee-bot/internal/infra/feishu"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "send <conversation> <text>",
		Short: "Send a text message as the bot",
		Long:  "Send a message to a conversation through Feishu. The message is not recorded in the conversation history.",
		Args:  cobra.MinimumNArgs(2),
		Run:   runSend,
	})
}

func runSend(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Feishu.AppID == "" || cfg.Feishu.AppSecret == "" {
		exitErr("send", fmt.Errorf("FEISHU_APP_ID and FEISHU_APP_SECRET must be set"))
	}

	conv := domain.ConversationID(args[0])
	text := strings.Join(args[1:], " ")

	client := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	if err := client.SendText(cmd.Context(), conv.ChatID(), text); err != nil {
		exitErr("send", err)
	}

	fmt.Println("Message sent successfully!")
}
