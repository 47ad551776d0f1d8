package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "indexes",
		Short: "List the indexes of the conversation store",
		Args:  cobra.NoArgs,
		Run:   runIndexes,
	})
}

func runIndexes(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	s, err := openStore(ctx, loadConfig())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	names, err := s.Indexes(ctx)
	if err != nil {
		exitErr("list indexes", err)
	}

	if formatFlag == "text" {
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	b, _ := json.MarshalIndent(map[string]interface{}{"indexes": names}, "", "  ")
	fmt.Println(string(b))
}
