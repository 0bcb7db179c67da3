// Package backend talks to the remote conversational agent that owns session state.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/asymptotic-code/telegram-bot/internal/config"
)

// Backend is a conversation anchored to a session key. The remote side keeps
// the accumulated context; callers never resend history.
//
// Transport failures are *apperr.RemoteCallError, malformed replies *apperr.ProtocolError.
type Backend interface {
	SessionExists(ctx context.Context, key string) (bool, error)
	CreateSession(ctx context.Context, key string) error
	Converse(ctx context.Context, message, key string) (string, error)
	// ClearSession drops remote state unconditionally; clearing a missing session is not an error.
	ClearSession(ctx context.Context, key string) error
}

// EnsureSession creates the session only when the backend reports it missing.
func EnsureSession(ctx context.Context, b Backend, key string) error {
	ok, err := b.SessionExists(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return b.CreateSession(ctx, key)
}

// New builds the backend variant selected in cfg. The result may implement io.Closer.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (Backend, error) {
	switch cfg.ConversationBackend {
	case config.BackendDirect:
		return NewDirect(cfg.AgentURL, cfg.AgentAPIKey, cfg.AgentTimeout), nil
	case config.BackendTool:
		return ConnectTool(ctx, cfg.MCPServerPath, cfg.MCPServerArgs, log)
	default:
		return nil, fmt.Errorf("unknown conversation backend: %s", cfg.ConversationBackend)
	}
}
