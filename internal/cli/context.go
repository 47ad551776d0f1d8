package cli

import (
	"encoding/json"
	"fmt"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
	"github.com/flatpee/flatpee-bot/internal/biz/usecase"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context <conversation>",
		Short: "Show the context window of a conversation",
		Long:  "Print the most recent stored messages of a conversation, oldest first, exactly as the generation provider would see them.",
		Args:  cobra.ExactArgs(1),
		Run:   runContext,
	}

	cmd.Flags().IntP("window", "w", 0, "Number of messages (default: $HISTORY_WINDOW or 10)")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	window, _ := cmd.Flags().GetInt("window")
	ctx := cmd.Context()
	cfg := loadConfig()

	s, err := openStore(ctx, cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	historyUC := usecase.NewHistoryUsecase(s, cfg.Context.Window)
	history, err := historyUC.FetchContext(ctx, domain.ConversationID(args[0]), window)
	if err != nil {
		exitErr("fetch context", err)
	}

	if formatFlag == "text" {
		for _, m := range history.Messages {
			arrow := "<"
			if m.Direction == domain.DirectionOutbound {
				arrow = ">"
			}
			fmt.Printf("%s %s %s\n", m.OccurredAt.Format("2006-01-02 15:04:05"), arrow, m.Text)
		}
		fmt.Printf("(%d messages)\n", history.Count)
		return
	}

	b, _ := json.MarshalIndent(history, "", "  ")
	fmt.Println(string(b))
}
