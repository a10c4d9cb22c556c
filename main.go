package main

import (
	"fmt"
	"os"

	"github.com/ClipFinance/intents-solver/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// A .env file is optional; environment variables win either way.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
