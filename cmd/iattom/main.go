package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/harun/iattom/internal/cli"
)

func main() {
	// a missing .env is fine; the environment is used as is
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
