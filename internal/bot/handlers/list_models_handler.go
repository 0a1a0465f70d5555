package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewListModelsHandler returns a handler for the /list_models command.
func NewListModelsHandler(deps HandlerDeps) bot.HandlerFunc {
	return listModelsHandler{deps}.Handle
}

// listModelsHandler lists the models the inference backend has available.
type listModelsHandler struct {
	deps HandlerDeps
}

func (h listModelsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "list_models")

	if update.Message == nil {
		log.WarnContext(ctx, "List models handler received update with nil message", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID

	var text string
	names, err := h.deps.Client.ListModels(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list models", "error", err, "chat_id", chatID)
		text = fmt.Sprintf("❌ Failed to fetch models: %v", err)
	} else {
		text = formatModelList(names)
		log.InfoContext(ctx, "Listed models", "count", len(names), "chat_id", chatID)
	}

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send model list", "error", err, "chat_id", chatID)
	}
}

func formatModelList(names []string) string {
	var sb strings.Builder
	sb.WriteString("Available models:")
	for _, name := range names {
		sb.WriteString("\n• ")
		sb.WriteString(name)
	}
	return sb.String()
}
