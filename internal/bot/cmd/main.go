package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"spendmillion/internal/bot"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		log.Fatal().Msg("BOT_TOKEN must be set")
	}
	webAppURL := os.Getenv("WEB_APP_URL")
	if webAppURL == "" {
		log.Fatal().Msg("WEB_APP_URL must be set")
	}

	b, err := bot.New(token, webAppURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start bot")
	}

	go b.Run()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down bot...")
	b.Stop()
}
