package discord

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/Yunkai-Xiao/MisakiCat/internal/chat"
)

// messageAPI is the subset of *discordgo.Session used to talk back to a
// channel.
type messageAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// Responder implements chat.Responder for Discord channels.
type Responder struct {
	api    messageAPI
	selfID atomic.Value // string, set once the gateway reports Ready
}

var _ chat.Responder = (*Responder)(nil)

func newResponder(api messageAPI) *Responder {
	r := &Responder{api: api}
	r.selfID.Store("")
	return r
}

// SelfID returns the bot user's ID, or "" before the session is ready.
func (r *Responder) SelfID() string {
	return r.selfID.Load().(string)
}

func (r *Responder) setSelfID(id string) {
	r.selfID.Store(id)
}

// Reply sends text as a reply to msg without pinging the author.
func (r *Responder) Reply(ctx context.Context, msg chat.Message, text string) error {
	_, err := r.api.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content: text,
		Reference: &discordgo.MessageReference{
			MessageID: msg.ID,
			ChannelID: msg.ChannelID,
			GuildID:   msg.GuildID,
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse:       []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
			RepliedUser: false,
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("sending reply to %s: %w", msg.ChannelID, err)
	}
	return nil
}

// Notify posts text to the channel.
func (r *Responder) Notify(ctx context.Context, channelID, text string) error {
	if _, err := r.api.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending notice to %s: %w", channelID, err)
	}
	return nil
}

// Typing triggers the channel's typing indicator for a few seconds.
func (r *Responder) Typing(ctx context.Context, channelID string) error {
	return r.api.ChannelTyping(channelID, discordgo.WithContext(ctx))
}
