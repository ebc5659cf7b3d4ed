package main

import (
	"os"

	"github.com/lexvault/lexvault/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
