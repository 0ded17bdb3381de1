package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/reqtrack/reqtrack/internal/config"
	"github.com/reqtrack/reqtrack/internal/mail"
	"github.com/reqtrack/reqtrack/internal/queue"
)

// The mailer drains the outbound mail queue the API publishes to and hands
// each message to SMTP. Without SMTP settings it only logs the messages.
func main() {
	_ = godotenv.Load()
	log := config.NewLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"), "reqtrack-mailer")

	url := config.RabbitURL()
	if url == "" {
		log.Fatal().Msg("RABBITMQ_URL or AMQP_URL is required")
	}
	cfg := config.LoadMailConfig()

	var m mail.Mailer = mail.NewLogMailer(log)
	if cfg.Enabled() {
		m = mail.NewSMTPMailer(cfg)
	} else {
		log.Warn().Msg("SMTP_HOST not set, messages will only be logged")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("queue", cfg.Queue).Msg("mail consumer starting")
	if err := queue.NewConsumer(url, cfg.Queue, m, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("mail consumer")
	}
	log.Info().Msg("mail consumer stopped")
}
