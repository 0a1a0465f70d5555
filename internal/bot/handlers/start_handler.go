package handlers

import (
	"context"
	"fmt"
	"html"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler greets the user with an HTML mention.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /start command", "chat_id", update.Message.Chat.ID, "user_id", update.Message.From.ID)

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      welcomeMessage(update.Message.From),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send welcome message", "error", err, "chat_id", update.Message.Chat.ID)
	}
}

func welcomeMessage(u *models.User) string {
	return fmt.Sprintf("Hi %s! I'm an AI assistant powered by Ollama.\n\n"+
		"You can:\n"+
		"- Ask me anything\n"+
		"- Use /list_models to see available models\n"+
		"- Use /help for assistance", mentionHTML(u))
}

// mentionHTML renders an inline mention of u for ParseModeHTML messages.
func mentionHTML(u *models.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, u.ID, html.EscapeString(name))
}
