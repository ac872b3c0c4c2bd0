package main

import (
	"os"

	"github.com/baaaaaaaka/claude_code_memory/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
