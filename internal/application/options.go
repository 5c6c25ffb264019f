package application

import (
	"log/slog"

	"ghostsync/cli/internal/config"
	"ghostsync/cli/internal/desktop"
	"ghostsync/cli/internal/target"
	"ghostsync/cli/internal/telegram"
)

// StartOptions carries the pieces main decides on: configuration, the
// platform desktop backend and, in tests, a stand-in Telegram API.
type StartOptions struct {
	Config   config.Config
	Logger   *slog.Logger
	Backend  desktop.Backend
	Telegram telegram.API
	Registry *target.Registry
}
