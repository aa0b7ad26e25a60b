package main

import (
	"os"

	"github.com/agentloop/ralph/internal/interface/cli"
)

func main() {
	os.Exit(cli.Execute())
}
