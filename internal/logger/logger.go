// Package logger builds the process-wide slog logger and the Telegram update
// logging middleware.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
)

// previewLength caps message text copied into log lines.
const previewLength = 50

// NewLogger creates a slog Logger writing to stdout and installs it as the
// default. Unknown levels fall back to info.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	logger := New(os.Stdout, levelStr, jsonOutput)
	slog.SetDefault(logger)
	return logger
}

// New creates a slog Logger writing to w without touching the default.
func New(w io.Writer, levelStr string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(levelStr),
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a config level name to a slog.Level.
func ParseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Middleware logs every Telegram update before and after its handler runs.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			startTime := time.Now()

			logEntry := log.With(
				"update_id", update.ID,
				"request_id", uuid.NewString(),
			)

			updateType := "other"
			if msg := update.Message; msg != nil {
				updateType = "message"
				var userID int64
				if msg.From != nil {
					userID = msg.From.ID
				}
				logEntry = logEntry.With(
					"message_id", msg.ID,
					"chat_id", msg.Chat.ID,
					"user_id", userID,
					"text_preview", Preview(msg.Text, previewLength),
				)
			}
			logEntry = logEntry.With("update_type", updateType)

			logEntry.InfoContext(ctx, "Processing update")

			next(ctx, b, update)

			logEntry.InfoContext(ctx, "Finished processing update", "duration", time.Since(startTime))
		}
	}
}

// Preview shortens s to at most maxLen runes, marking the cut with "...".
func Preview(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}
