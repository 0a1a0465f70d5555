package handlers

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yunkai-Xiao/MisakiCat/internal/config"
	"github.com/Yunkai-Xiao/MisakiCat/internal/inference"
)

type apiCall struct {
	method string
	form   map[string]string
}

// telegramServer fakes the Bot API and records every call.
type telegramServer struct {
	mu    sync.Mutex
	calls []apiCall
}

func (s *telegramServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseMultipartForm(1 << 20)
	form := make(map[string]string)
	for k, v := range r.Form {
		if len(v) > 0 {
			form[k] = v[0]
		}
	}
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	s.mu.Lock()
	s.calls = append(s.calls, apiCall{method: method, form: form})
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "sendMessage":
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":100,"date":0,"chat":{"id":1,"type":"private"}}}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}
}

func (s *telegramServer) sent(method string) []apiCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []apiCall
	for _, c := range s.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

type fakeClient struct {
	chunks  []string
	err     error
	models  []string
	lastReq inference.Request
}

func (f *fakeClient) Generate(context.Context, inference.Request) (string, error) {
	return strings.Join(f.chunks, ""), f.err
}

func (f *fakeClient) GenerateStream(_ context.Context, req inference.Request) iter.Seq2[string, error] {
	f.lastReq = req
	return func(yield func(string, error) bool) {
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

func (f *fakeClient) Embeddings(context.Context, string, string) ([]float32, error) {
	return nil, f.err
}

func (f *fakeClient) ListModels(context.Context) ([]string, error) {
	return f.models, f.err
}

func newTestDeps(client inference.Client) HandlerDeps {
	return HandlerDeps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: &config.Config{
			Telegram: config.TelegramConfig{
				Model:            "deepseek-llm:latest",
				Temperature:      0.7,
				MaxTokens:        500,
				MaxMessageLength: 4096,
			},
			Messages: config.MessagesConfig{
				TelegramError: "🚨 Sorry, I encountered an error processing your request.",
				TelegramEmpty: "🤖 I didn't get a response. Please try again.",
				Help:          "help text",
			},
		},
		Client: client,
	}
}

func newTestBot(t *testing.T) (*tgbot.Bot, *telegramServer) {
	t.Helper()

	fake := &telegramServer{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	b, err := tgbot.New("123:test-token", tgbot.WithSkipGetMe(), tgbot.WithServerURL(srv.URL))
	require.NoError(t, err)
	return b, fake
}

func textUpdate(text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   7,
			Text: text,
			Chat: models.Chat{ID: 1, Type: models.ChatTypePrivate},
			From: &models.User{ID: 55, FirstName: "Ada <3"},
		},
	}
}

func TestChatHandler_StreamsIntoOneReply(t *testing.T) {
	t.Parallel()

	b, srv := newTestBot(t)
	client := &fakeClient{chunks: []string{"Hello", ", ", "world"}}
	NewChatHandler(newTestDeps(client))(context.Background(), b, textUpdate("hi there"))

	msgs := srv.sent("sendMessage")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello, world", msgs[0].form["text"])
	assert.Equal(t, "1", msgs[0].form["chat_id"])
	assert.Contains(t, msgs[0].form["reply_parameters"], `"message_id":7`)
	assert.NotEmpty(t, srv.sent("sendChatAction"))

	assert.Equal(t, "deepseek-llm:latest", client.lastReq.Model)
	assert.Equal(t, "hi there", client.lastReq.Prompt)
	assert.Equal(t, 0.7, client.lastReq.Options[inference.OptionTemperature])
	assert.Equal(t, 500, client.lastReq.Options[inference.OptionMaxTokens])
}

func TestChatHandler_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		client *fakeClient
		want   string
	}{
		{
			name:   "stream error",
			client: &fakeClient{chunks: []string{"partial"}, err: inference.ErrTransport},
			want:   "🚨 Sorry, I encountered an error processing your request.",
		},
		{
			name:   "empty stream",
			client: &fakeClient{},
			want:   "🤖 I didn't get a response. Please try again.",
		},
		{
			name:   "whitespace only",
			client: &fakeClient{chunks: []string{" ", "\n"}},
			want:   "🤖 I didn't get a response. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, srv := newTestBot(t)
			NewChatHandler(newTestDeps(tt.client))(context.Background(), b, textUpdate("hello"))

			msgs := srv.sent("sendMessage")
			require.Len(t, msgs, 1)
			assert.Equal(t, tt.want, msgs[0].form["text"])
		})
	}
}

func TestChatHandler_SplitsLongReplies(t *testing.T) {
	t.Parallel()

	b, srv := newTestBot(t)
	long := strings.Repeat("word ", 2000) // 10000 runes
	NewChatHandler(newTestDeps(&fakeClient{chunks: []string{long}}))(context.Background(), b, textUpdate("essay please"))

	msgs := srv.sent("sendMessage")
	require.Len(t, msgs, 3)
	var total int
	for _, m := range msgs {
		n := utf8.RuneCountInString(m.form["text"])
		assert.LessOrEqual(t, n, 4096)
		total += n
	}
	assert.Greater(t, total, 9000)
}

func TestDefaultHandler_IgnoresCommands(t *testing.T) {
	t.Parallel()

	b, srv := newTestBot(t)
	NewDefaultHandler(newTestDeps(&fakeClient{chunks: []string{"x"}}))(context.Background(), b, textUpdate("/unknown"))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Empty(t, srv.calls)
}

func TestStartHandler_HTMLMention(t *testing.T) {
	t.Parallel()

	b, srv := newTestBot(t)
	NewStartHandler(newTestDeps(&fakeClient{}))(context.Background(), b, textUpdate("/start"))

	msgs := srv.sent("sendMessage")
	require.Len(t, msgs, 1)
	assert.Equal(t, "HTML", msgs[0].form["parse_mode"])
	assert.True(t, strings.HasPrefix(msgs[0].form["text"], `Hi <a href="tg://user?id=55">Ada &lt;3</a>!`))
	assert.Contains(t, msgs[0].form["text"], "/list_models")
}

func TestHelpHandler(t *testing.T) {
	t.Parallel()

	b, srv := newTestBot(t)
	NewHelpHandler(newTestDeps(&fakeClient{}))(context.Background(), b, textUpdate("/help"))

	msgs := srv.sent("sendMessage")
	require.Len(t, msgs, 1)
	assert.Equal(t, "help text", msgs[0].form["text"])
}

func TestListModelsHandler(t *testing.T) {
	t.Parallel()

	b, srv := newTestBot(t)
	NewListModelsHandler(newTestDeps(&fakeClient{models: []string{"llama3:8b", "deepseek-r1:14b"}}))(context.Background(), b, textUpdate("/list_models"))

	msgs := srv.sent("sendMessage")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Available models:\n• llama3:8b\n• deepseek-r1:14b", msgs[0].form["text"])

	b2, srv2 := newTestBot(t)
	NewListModelsHandler(newTestDeps(&fakeClient{err: errors.New("connection refused")}))(context.Background(), b2, textUpdate("/list_models"))

	msgs = srv2.sent("sendMessage")
	require.Len(t, msgs, 1)
	assert.Equal(t, "❌ Failed to fetch models: connection refused", msgs[0].form["text"])
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{name: "fits", text: "short", limit: 10, want: []string{"short"}},
		{name: "prefers newline", text: "line one\nline two", limit: 12, want: []string{"line one", "line two"}},
		{name: "falls back to space", text: "alpha beta gamma", limit: 11, want: []string{"alpha beta", "gamma"}},
		{name: "hard cut", text: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "multibyte", text: "äöüäöü", limit: 3, want: []string{"äöü", "äöü"}},
		{name: "blank lines between parts are skipped", text: "a\n\n\n\n\n\nbbbbbbbbbb", limit: 5, want: []string{"a", "bbbbb", "bbbbb"}},
		{name: "trailing whitespace is not a part", text: "abcd\n    ", limit: 5, want: []string{"abcd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, splitMessage(tt.text, tt.limit))
		})
	}
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()

	cmds := RegisterAllCommands(newTestDeps(&fakeClient{}))
	for _, key := range []string{"/start", "/help", "/list_models"} {
		require.Contains(t, cmds, key)
		assert.NotNil(t, cmds[key].Handler)
		assert.Equal(t, key[1:], cmds[key].Pattern)
	}
}
