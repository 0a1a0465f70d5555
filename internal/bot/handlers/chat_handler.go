package handlers

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Yunkai-Xiao/MisakiCat/internal/inference"
)

const sendMessageTimeout = 10 * time.Second

// NewChatHandler returns the default handler: any plain text is sent to the
// backend as a prompt and the streamed answer is posted back in one piece.
func NewChatHandler(deps HandlerDeps) bot.HandlerFunc {
	return chatHandler{deps}.Handle
}

type chatHandler struct {
	deps HandlerDeps
}

func (h chatHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "chat")
	cfg := h.deps.Config

	msg := update.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		log.DebugContext(ctx, "Ignoring update without text", "update_id", update.ID)
		return
	}
	chatID := msg.Chat.ID

	stopTyping := keepTyping(ctx, b, chatID, cfg.Telegram.TypingInterval)

	started := time.Now()
	var sb strings.Builder
	var streamErr error
	chunks := 0
	for chunk, err := range h.deps.Client.GenerateStream(ctx, inference.Request{
		Model:  cfg.Telegram.Model,
		Prompt: msg.Text,
		Options: inference.Options{
			inference.OptionTemperature: cfg.Telegram.Temperature,
			inference.OptionMaxTokens:   cfg.Telegram.MaxTokens,
		},
	}) {
		if err != nil {
			streamErr = err
			break
		}
		sb.WriteString(chunk)
		chunks++
	}
	stopTyping()

	if streamErr != nil {
		log.ErrorContext(ctx, "Error processing message", "error", streamErr, "chat_id", chatID)
		h.send(ctx, b, chatID, msg.ID, cfg.Messages.TelegramError)
		return
	}

	reply := sb.String()
	if strings.TrimSpace(reply) == "" {
		log.WarnContext(ctx, "Backend returned an empty stream", "chat_id", chatID)
		h.send(ctx, b, chatID, msg.ID, cfg.Messages.TelegramEmpty)
		return
	}

	parts := splitMessage(reply, cfg.Telegram.MaxMessageLength)
	for _, part := range parts {
		h.send(ctx, b, chatID, msg.ID, part)
	}
	log.InfoContext(ctx, "Sent reply", "chat_id", chatID, "chunks", chunks, "parts", len(parts), "duration", time.Since(started))
}

func (h chatHandler) send(ctx context.Context, b *bot.Bot, chatID int64, replyTo int, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()

	_, err := b.SendMessage(sendCtx, &bot.SendMessageParams{
		ChatID:          chatID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: replyTo, AllowSendingWithoutReply: true},
	})
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send message", "handler", "chat", "error", err, "chat_id", chatID)
	}
}

// keepTyping sends the typing action now and then every interval until the
// returned stop func is called. A non-positive interval sends it once.
func keepTyping(ctx context.Context, b *bot.Bot, chatID int64, interval time.Duration) (stop func()) {
	send := func(ctx context.Context) {
		_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})
	}

	if interval <= 0 {
		send(ctx)
		return func() {}
	}

	typingCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			send(typingCtx)
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// splitMessage breaks text into parts of at most limit runes, preferring to
// cut at the last newline, then the last space, inside each window.
func splitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		window := string(runes[:limit])
		if i := strings.LastIndex(window, "\n"); i > 0 {
			cut = utf8.RuneCountInString(window[:i]) + 1
		} else if i := strings.LastIndex(window, " "); i > 0 {
			cut = utf8.RuneCountInString(window[:i]) + 1
		}
		// Telegram rejects empty messages, so whitespace-only windows are dropped.
		if part := strings.TrimRight(string(runes[:cut]), " \n"); part != "" {
			parts = append(parts, part)
		}
		runes = runes[cut:]
	}
	if rest := string(runes); strings.TrimSpace(rest) != "" {
		parts = append(parts, rest)
	}
	return parts
}
