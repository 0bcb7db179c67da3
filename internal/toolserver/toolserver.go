// Package toolserver exposes a conversation backend as MCP tools, the
// counterpart of backend.ToolBackend.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/asymptotic-code/telegram-bot/internal/backend"
)

type SessionParams struct {
	Session string `json:"session" mcp:"session key, <origin>:<user id>:<chat id>"`
}

type ConversationParams struct {
	Session string `json:"session" mcp:"session key, <origin>:<user id>:<chat id>"`
	Message string `json:"message" mcp:"user message to send to the agent"`
}

type Server struct {
	backend backend.Backend
	log     *zap.Logger
}

func New(b backend.Backend, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{backend: b, log: log}
}

// Register adds the four session tools to srv.
func (s *Server) Register(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        backend.ToolSessionExists,
		Description: "Reports whether the agent holds a session for the key. Replies true or false.",
	}, s.SessionExists)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        backend.ToolCreateSession,
		Description: "Creates an empty agent session for the key.",
	}, s.CreateSession)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        backend.ToolClearSession,
		Description: "Drops the agent session for the key. Clearing a missing session succeeds.",
	}, s.ClearSession)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        backend.ToolConversation,
		Description: `Sends a message within a session and returns {"response": "..."}.`,
	}, s.Conversation)
}

func (s *Server) SessionExists(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SessionParams]) (*mcp.CallToolResultFor[any], error) {
	key := params.Arguments.Session
	if key == "" {
		return toolError("session is required"), nil
	}
	ok, err := s.backend.SessionExists(ctx, key)
	if err != nil {
		return s.failed(backend.ToolSessionExists, key, err), nil
	}
	return text(strconv.FormatBool(ok)), nil
}

func (s *Server) CreateSession(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SessionParams]) (*mcp.CallToolResultFor[any], error) {
	key := params.Arguments.Session
	if key == "" {
		return toolError("session is required"), nil
	}
	if err := s.backend.CreateSession(ctx, key); err != nil {
		return s.failed(backend.ToolCreateSession, key, err), nil
	}
	return text("ok"), nil
}

func (s *Server) ClearSession(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[SessionParams]) (*mcp.CallToolResultFor[any], error) {
	key := params.Arguments.Session
	if key == "" {
		return toolError("session is required"), nil
	}
	if err := s.backend.ClearSession(ctx, key); err != nil {
		return s.failed(backend.ToolClearSession, key, err), nil
	}
	return text("ok"), nil
}

func (s *Server) Conversation(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[ConversationParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	if args.Session == "" || args.Message == "" {
		return toolError("session and message are required"), nil
	}
	answer, err := s.backend.Converse(ctx, args.Message, args.Session)
	if err != nil {
		return s.failed(backend.ToolConversation, args.Session, err), nil
	}
	payload, err := json.Marshal(map[string]string{"response": answer})
	if err != nil {
		return toolError(fmt.Sprintf("encode response: %v", err)), nil
	}
	return text(string(payload)), nil
}

func (s *Server) failed(tool, key string, err error) *mcp.CallToolResultFor[any] {
	s.log.Warn("tool call failed", zap.String("tool", tool), zap.String("session", key), zap.Error(err))
	return toolError(err.Error())
}

func text(s string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: s}},
	}
}

func toolError(s string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: s}},
	}
}
