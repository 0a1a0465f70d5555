package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"github.com/Yunkai-Xiao/MisakiCat/internal/bot"
	"github.com/Yunkai-Xiao/MisakiCat/internal/bot/handlers"
	"github.com/Yunkai-Xiao/MisakiCat/internal/bot/tasks"
	"github.com/Yunkai-Xiao/MisakiCat/internal/chat"
	"github.com/Yunkai-Xiao/MisakiCat/internal/config"
	"github.com/Yunkai-Xiao/MisakiCat/internal/discord"
	"github.com/Yunkai-Xiao/MisakiCat/internal/inference"
	"github.com/Yunkai-Xiao/MisakiCat/internal/logger"
	"github.com/Yunkai-Xiao/MisakiCat/internal/telegram"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the enabled chat front-ends until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

// serve initializes every component (inference client, front-ends,
// scheduler), runs them and blocks until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	cfg, log := a.cfg, a.log
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	client, err := newInferenceClient(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize inference client: %w", err)
	}

	state := chat.NewState(cfg.Context.MaxEntries)

	var discordBot bot.Runner
	if cfg.Discord.Enabled {
		dispatcher := newDispatcher(cfg, state, client, log)
		d, err := discord.NewBot(cfg.Discord.Token, dispatcher, cfg.Discord.Status, log)
		if err != nil {
			return fmt.Errorf("failed to create Discord bot: %w", err)
		}
		discordBot = d
	}

	var tg *tgbot.Bot
	if cfg.Telegram.Enabled {
		tg, err = newTelegramBot(ctx, cfg, client, log)
		if err != nil {
			return err
		}
	}

	tDeps := tasks.TaskDeps{
		Logger: log,
		Config: cfg,
		State:  state,
		Client: client,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		return err
	}

	orchestrator, err := bot.NewBot(log, discordBot, tg, sched)
	if err != nil {
		_ = sched.Stop()
		return err
	}

	log.Info("Starting bot...", "discord", cfg.Discord.Enabled, "telegram", cfg.Telegram.Enabled, "model", cfg.Model.Name)
	runErr := orchestrator.Run(ctx)
	log.Info("Bot run loop finished.")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return fmt.Errorf("bot stopped due to error: %w", runErr)
	}

	log.Info("Bot stopped gracefully.")
	return nil
}

// newDispatcher builds the gated chat loop used by the Discord front-end.
func newDispatcher(cfg *config.Config, state *chat.State, client inference.Client, log *slog.Logger) *chat.Dispatcher {
	gate := chat.NewGate(chat.GateConfig{
		IgnorePrefixes:      cfg.Gate.IgnorePrefixes,
		Cooldown:            cfg.Gate.Cooldown,
		TriggerKeywords:     cfg.Gate.TriggerKeywords,
		ResponseProbability: cfg.Gate.ResponseProbability,
	}, chat.DefaultRandSource)

	return chat.NewDispatcher(log, chat.DispatchConfig{
		Model: cfg.Model.Name,
		Options: inference.Options{
			inference.OptionTemperature: cfg.Model.Temperature,
			inference.OptionMaxTokens:   cfg.Model.MaxTokens,
		},
		MaxReplyLength:    cfg.Discord.MaxMessageLength,
		MaxConcurrent:     cfg.Dispatch.MaxConcurrent,
		GenerationTimeout: cfg.Dispatch.GenerationTimeout,
		TypingInterval:    cfg.Dispatch.TypingInterval,
		ErrorMessage:      cfg.Messages.Error,
		EmptyMessage:      cfg.Messages.Empty,
	}, gate, state, client)
}

// newTelegramBot creates the Telegram front-end with its command handlers
// registered.
func newTelegramBot(ctx context.Context, cfg *config.Config, client inference.Client, log *slog.Logger) (*tgbot.Bot, error) {
	hDeps := handlers.HandlerDeps{
		Logger: log,
		Config: cfg,
		Client: client,
	}

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log,
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewDefaultHandler(hDeps)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	me, err := tg.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Telegram bot info: %w", err)
	}
	log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		return nil, fmt.Errorf("failed to register Telegram handlers: %w", err)
	}
	return tg, nil
}
