package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/roach88/tillsync/internal/cli"
)

func main() {
	// Optional .env next to the binary; real environment wins.
	_ = godotenv.Load()

	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
