// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TextOnly lets through plain text messages and drops everything else,
// including commands nobody registered a handler for.
func TextOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			msg := update.Message
			if msg == nil || msg.Text == "" {
				return
			}
			if strings.HasPrefix(msg.Text, "/") {
				deps.Logger.DebugContext(ctx, "Ignoring unknown command", "middleware", "TextOnly", "chat_id", msg.Chat.ID, "text", msg.Text)
				return
			}
			next(ctx, bot, update)
		}
	}
}
