package telegram

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yunkai-Xiao/MisakiCat/internal/bot/handlers"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTokenPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "empty", token: "", want: "..."},
		{name: "shorter than prefix", token: "123", want: "..."},
		{name: "exactly prefix length", token: "12345678", want: "..."},
		{name: "real token", token: "123456789:AAExampleSecret", want: "12345678..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tokenPrefix(tt.token))
		})
	}
}

func TestNewTelegramBot_RequiresToken(t *testing.T) {
	t.Parallel()

	_, err := NewTelegramBot("", discardLogger())
	require.Error(t, err)

	b, err := NewTelegramBot("123:short", nil, bot.WithSkipGetMe())
	require.NoError(t, err, "short tokens must not break logging")
	assert.NotNil(t, b)
}

func TestApplyMiddleware_Order(t *testing.T) {
	t.Parallel()

	var calls []string
	mw := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, u *models.Update) {
				calls = append(calls, name)
				next(ctx, b, u)
			}
		}
	}
	h := applyMiddleware(func(context.Context, *bot.Bot, *models.Update) {
		calls = append(calls, "handler")
	}, []bot.Middleware{mw("outer"), mw("inner")})

	h(context.Background(), nil, &models.Update{})
	assert.Equal(t, []string{"outer", "inner", "handler"}, calls)
}

func TestRegisterHandlers(t *testing.T) {
	t.Parallel()

	require.Error(t, RegisterHandlers(nil, discardLogger(), nil))

	b, err := NewTelegramBot("123:test-token", discardLogger(), bot.WithSkipGetMe())
	require.NoError(t, err)

	noop := func(context.Context, *bot.Bot, *models.Update) {}
	err = RegisterHandlers(b, discardLogger(), map[string]handlers.RegisteredHandler{
		"/ping": {HandlerType: bot.HandlerTypeMessageText, Pattern: "ping", Handler: noop, MatchType: bot.MatchTypeCommandStartOnly},
		"/nil":  {HandlerType: bot.HandlerTypeMessageText, Pattern: "nil", MatchType: bot.MatchTypeCommandStartOnly},
	})
	assert.NoError(t, err)
	assert.NoError(t, RegisterHandlers(b, discardLogger(), nil), "empty registry is a no-op")
}
