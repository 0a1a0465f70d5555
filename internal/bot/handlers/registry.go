package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a command handler with its match rules and
// middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands returns every slash command the bot understands.
// Plain text goes to the default handler, see NewDefaultHandler.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	handlers["/help"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewHelpHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	handlers["/list_models"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "list_models",
		Handler:     NewListModelsHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	return handlers
}

// NewDefaultHandler wraps the chat handler so only plain text reaches it.
func NewDefaultHandler(deps HandlerDeps) tgbot.HandlerFunc {
	return TextOnly(deps)(NewChatHandler(deps))
}
