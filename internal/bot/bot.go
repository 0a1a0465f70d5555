// Package bot wires the chat front-ends and the maintenance scheduler
// together and manages their lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"
)

// Runner is a long-lived component that runs until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Bot owns the enabled front-ends and the scheduler.
type Bot struct {
	logger    *slog.Logger
	discord   Runner
	tgBot     *tgbot.Bot
	scheduler *Scheduler
}

// NewBot creates the orchestrator. discord and tgBot may be nil when that
// front-end is disabled, but not both.
func NewBot(logger *slog.Logger, discord Runner, tgBot *tgbot.Bot, scheduler *Scheduler) (*Bot, error) {
	if discord == nil && tgBot == nil {
		return nil, errors.New("no chat front-end enabled")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		discord:   discord,
		tgBot:     tgBot,
		scheduler: scheduler,
	}, nil
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	if b.discord != nil {
		g.Go(func() error {
			b.logger.Info("Starting Discord front-end...")
			if err := b.discord.Run(gCtx); err != nil {
				return fmt.Errorf("discord: %w", err)
			}
			b.logger.Info("Discord front-end stopped.")
			return nil
		})
	}

	if b.tgBot != nil {
		g.Go(func() error {
			b.logger.Info("Starting Telegram bot listener...")
			b.tgBot.Start(gCtx)
			b.logger.Info("Telegram bot listener stopped.")

			if gCtx.Err() == nil {
				return errors.New("telegram listener stopped unexpectedly")
			}
			return nil
		})
	}

	if b.scheduler != nil {
		g.Go(func() error {
			if _, err := b.scheduler.Start(gCtx); err != nil {
				_ = b.scheduler.Stop()
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			b.logger.Info("Shutdown signal received, stopping scheduler...")

			if err := b.scheduler.Stop(); err != nil {
				b.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
