package main

import (
	"github.com/joho/godotenv"

	app "cloak-engine/internal/app/server"
	"cloak-engine/internal/config"
)

func main() {
	_ = godotenv.Load() // optional .env for local development

	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	app.Run(cfg)
}
