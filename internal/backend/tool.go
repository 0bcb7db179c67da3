package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/asymptotic-code/telegram-bot/internal/apperr"
)

// Tool names exposed by the agent's MCP server.
const (
	ToolSessionExists = "session_exists"
	ToolCreateSession = "create_session"
	ToolClearSession  = "clear_session"
	ToolConversation  = "conversation_tool"
)

type toolCaller interface {
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close() error
}

// ToolBackend drives the agent through MCP tool calls.
type ToolBackend struct {
	session toolCaller
	log     *zap.Logger
}

type conversationPayload struct {
	Response *string `json:"response"`
}

// ConnectTool starts the MCP server binary at path and connects over stdio.
func ConnectTool(ctx context.Context, path string, args []string, log *zap.Logger) (*ToolBackend, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "telegram-bot",
		Version: "1.0.0",
	}, nil)

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = os.Environ()
	cmd.Stderr = os.Stderr

	session, err := client.Connect(ctx, mcp.NewCommandTransport(cmd))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to agent MCP server %s: %w", path, err)
	}
	log.Info("connected to agent MCP server", zap.String("path", path))
	return &ToolBackend{session: session, log: log}, nil
}

func (t *ToolBackend) Close() error {
	return t.session.Close()
}

func (t *ToolBackend) SessionExists(ctx context.Context, key string) (bool, error) {
	text, err := t.call(ctx, ToolSessionExists, map[string]any{"session": key})
	if err != nil {
		return false, err
	}
	ok, perr := strconv.ParseBool(strings.ToLower(strings.TrimSpace(text)))
	if perr != nil {
		return false, &apperr.ProtocolError{Op: ToolSessionExists, Detail: fmt.Sprintf("not a boolean: %q", text)}
	}
	return ok, nil
}

func (t *ToolBackend) CreateSession(ctx context.Context, key string) error {
	_, err := t.call(ctx, ToolCreateSession, map[string]any{"session": key})
	return err
}

func (t *ToolBackend) ClearSession(ctx context.Context, key string) error {
	_, err := t.call(ctx, ToolClearSession, map[string]any{"session": key})
	return err
}

func (t *ToolBackend) Converse(ctx context.Context, message, key string) (string, error) {
	text, err := t.call(ctx, ToolConversation, map[string]any{"session": key, "message": message})
	if err != nil {
		return "", err
	}
	var p conversationPayload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return "", &apperr.ProtocolError{Op: ToolConversation, Detail: fmt.Sprintf("decode: %v", err)}
	}
	if p.Response == nil || strings.TrimSpace(*p.Response) == "" {
		return "", &apperr.ProtocolError{Op: ToolConversation, Detail: "missing response field"}
	}
	return strings.TrimSpace(*p.Response), nil
}

// call invokes a tool and concatenates its text content.
func (t *ToolBackend) call(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := t.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", apperr.Remote(name, err)
	}
	if result == nil {
		return "", &apperr.ProtocolError{Op: name, Detail: "nil result"}
	}

	var text strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			text.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return "", &apperr.ProtocolError{Op: name, Detail: "tool error: " + text.String()}
	}
	t.log.Debug("tool call", zap.String("tool", name), zap.Int("bytes", text.Len()))
	return text.String(), nil
}
