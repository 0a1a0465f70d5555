// Package chat implements the platform-neutral conversation loop: deciding
// whether to answer a message, assembling bounded per-user context, calling
// the inference backend and turning its tagged output into a reply.
package chat

import (
	"context"
	"time"
)

// Message is an incoming chat message as seen by the dispatcher.
type Message struct {
	ID          string
	AuthorID    string
	ChannelID   string
	GuildID     string
	Content     string
	Timestamp   time.Time
	MentionsBot bool
}

// Responder delivers output back to the platform a message came from.
type Responder interface {
	// SelfID is the platform identity of the bot account.
	SelfID() string

	// Reply sends text as a threaded reply to msg without pinging its author.
	Reply(ctx context.Context, msg Message, text string) error

	// Notify posts a standalone notice to a channel.
	Notify(ctx context.Context, channelID, text string) error

	// Typing signals that a reply is being prepared.
	Typing(ctx context.Context, channelID string) error
}
