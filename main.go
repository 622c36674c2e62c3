package main

import (
	"github.com/joho/godotenv"

	"github.com/chew-z/workers-ai-proxy/cmd"
)

func main() {
	// Optional .env for local development; real deployments use the environment.
	_ = godotenv.Load()

	cmd.Execute()
}
