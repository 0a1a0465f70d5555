// Package tasks implements the bot's scheduled maintenance tasks and their
// registration.
package tasks

import (
	"log/slog"
	"time"

	"github.com/Yunkai-Xiao/MisakiCat/internal/chat"
	"github.com/Yunkai-Xiao/MisakiCat/internal/config"
	"github.com/Yunkai-Xiao/MisakiCat/internal/inference"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Config *config.Config
	State  *chat.State
	Client inference.Client

	// Now defaults to time.Now.
	Now func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
