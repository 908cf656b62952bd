package main

import (
	"os"

	"github.com/acmg-amp-rating/cmd/acmgctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
