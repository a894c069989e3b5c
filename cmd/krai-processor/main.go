package main

import (
	"fmt"
	"os"

	"github.com/krai-ai/krai-engine/cmd/krai-processor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
