package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"GuildBot/bot"
	"GuildBot/config"
	"GuildBot/utils"

	_ "GuildBot/extensions/admin"
	_ "GuildBot/extensions/help"
	_ "GuildBot/extensions/owner"
	_ "GuildBot/extensions/roles"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger := utils.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bot.NewBot(ctx, cfg, logger)
	if err != nil {
		logger.Error("start bot", "error", err)
		os.Exit(1)
	}

	logger.Info("bot is running, press Ctrl+C to exit")
	if err := b.Run(ctx); err != nil {
		logger.Error("bot stopped", "error", err)
		os.Exit(1)
	}
}
