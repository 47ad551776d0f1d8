package main

import (
	"os"

	"github.com/flatpee/flatpee-bot/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
