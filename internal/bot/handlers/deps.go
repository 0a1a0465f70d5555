package handlers

import (
	"log/slog"

	"github.com/Yunkai-Xiao/MisakiCat/internal/config"
	"github.com/Yunkai-Xiao/MisakiCat/internal/inference"
)

// HandlerDeps provides dependencies for Telegram handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Client inference.Client
}
