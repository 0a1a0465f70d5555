package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return helpHandler{deps}.Handle
}

// helpHandler processes the /help command using injected dependencies.
type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "help")

	if update.Message == nil {
		log.WarnContext(ctx, "Help handler received update with nil message", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /help command", "chat_id", update.Message.Chat.ID)

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: update.Message.Chat.ID, Text: h.deps.Config.Messages.Help})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send help message", "error", err, "chat_id", update.Message.Chat.ID)
	}
}
