package main

import (
	"os"

	"github.com/olyamironova/escrow-engine/cmd/escrowctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
