// Package discord connects the chat dispatch loop to a Discord bot account.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/Yunkai-Xiao/MisakiCat/internal/chat"
	"github.com/Yunkai-Xiao/MisakiCat/internal/logger"
)

// Intents requested from the gateway. Message content and member intents are
// privileged and must be enabled for the application.
const Intents = discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildMembers

// Dispatcher handles one incoming chat message.
type Dispatcher interface {
	Handle(ctx context.Context, r chat.Responder, msg chat.Message) chat.Outcome
}

// Bot owns the gateway session and feeds message events to the dispatcher.
type Bot struct {
	session    *discordgo.Session
	responder  *Responder
	dispatcher Dispatcher
	status     string
	log        *slog.Logger

	// ctx is the Run context, handed to event handlers.
	ctx      context.Context
	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewBot creates a session for token. Nothing connects until Run.
func NewBot(token string, dispatcher Dispatcher, status string, log *slog.Logger) (*Bot, error) {
	if token == "" {
		return nil, errors.New("discord bot token is required")
	}
	if log == nil {
		log = slog.Default()
	}

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = Intents

	b := &Bot{
		session:    s,
		responder:  newResponder(s),
		dispatcher: dispatcher,
		status:     status,
		log:        log.With("component", "discord"),
		ctx:        context.Background(),
	}
	s.AddHandler(b.onReady)
	s.AddHandler(b.onMessageCreate)
	return b, nil
}

// Run opens the gateway connection and blocks until ctx is cancelled, then
// closes the session and waits for in-flight messages to finish.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.log.Info("Discord session opened")

	<-ctx.Done()

	b.log.Info("Closing Discord session")
	err := b.session.Close()
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.inflight.Wait()
	if err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.responder.setSelfID(r.User.ID)
	b.log.Info("Logged in", "user", r.User.Username, "user_id", r.User.ID, "guilds", len(r.Guilds))

	if b.status == "" {
		return
	}
	if err := s.UpdateWatchStatus(0, b.status); err != nil {
		b.log.Warn("Failed to set presence", "error", err)
	}
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil {
		return
	}
	b.handleMessage(b.ctx, m.Message)
}

// handleMessage converts a gateway message and runs it through the
// dispatcher. discordgo already calls handlers on their own goroutine.
func (b *Bot) handleMessage(ctx context.Context, m *discordgo.Message) chat.Outcome {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return chat.OutcomeSkipped
	}
	b.inflight.Add(1)
	b.mu.Unlock()
	defer b.inflight.Done()

	selfID := b.responder.SelfID()
	if selfID == "" {
		b.log.Debug("Message before ready, ignoring", "message_id", m.ID)
		return chat.OutcomeSkipped
	}

	msg := toMessage(m, selfID, b.selfRoles(m.GuildID, selfID))
	b.log.Debug("Received message", "message_id", msg.ID, "channel_id", msg.ChannelID,
		"user_id", msg.AuthorID, "text_preview", logger.Preview(msg.Content, 50))

	return b.dispatcher.Handle(ctx, b.responder, msg)
}

// selfRoles returns the bot's role IDs in guildID from the session state
// cache, or nil outside a guild or before the guild is cached.
func (b *Bot) selfRoles(guildID, selfID string) []string {
	if guildID == "" || b.session == nil || b.session.State == nil {
		return nil
	}
	member, err := b.session.State.Member(guildID, selfID)
	if err != nil {
		return nil
	}
	return member.Roles
}

// toMessage maps a discordgo message onto chat.Message. A reply to one of
// the bot's own messages counts as a mention, as do @everyone and a mention
// of any role the bot holds.
func toMessage(m *discordgo.Message, selfID string, selfRoles []string) chat.Message {
	msg := chat.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}

	switch {
	case m.MentionEveryone:
		msg.MentionsBot = true
	case m.ReferencedMessage != nil && m.ReferencedMessage.Author != nil && m.ReferencedMessage.Author.ID == selfID:
		msg.MentionsBot = true
	case mentionsAnyRole(m.MentionRoles, selfRoles):
		msg.MentionsBot = true
	default:
		for _, u := range m.Mentions {
			if u != nil && u.ID == selfID {
				msg.MentionsBot = true
				break
			}
		}
	}
	return msg
}

func mentionsAnyRole(mentioned, held []string) bool {
	for _, id := range mentioned {
		if slices.Contains(held, id) {
			return true
		}
	}
	return false
}
