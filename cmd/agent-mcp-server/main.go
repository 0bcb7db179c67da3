// Command agent-mcp-server serves the conversation agent's HTTP API as MCP
// tools on stdin/stdout, for CONVERSATION_BACKEND=tool.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/asymptotic-code/telegram-bot/internal/backend"
	"github.com/asymptotic-code/telegram-bot/internal/logger"
	"github.com/asymptotic-code/telegram-bot/internal/toolserver"
)

type serverConfig struct {
	AgentURL     string        `env:"AGENT_URL" envDefault:"http://127.0.0.1:8888"`
	AgentAPIKey  string        `env:"AGENT_API_KEY"`
	AgentTimeout time.Duration `env:"AGENT_TIMEOUT" envDefault:"120s"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	// stdout carries the MCP stream, everything else goes to stderr.
	log.SetOutput(os.Stderr)
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	lg, err := logger.NewTo(cfg.LogLevel, "json", "stderr")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "telegram-bot-agent-mcp",
		Version: "1.0.0",
	}, nil)

	direct := backend.NewDirect(cfg.AgentURL, cfg.AgentAPIKey, cfg.AgentTimeout)
	toolserver.New(direct, lg).Register(server)

	lg.Info("serving agent tools on stdio",
		zap.String("agent_url", cfg.AgentURL),
		zap.Strings("tools", []string{
			backend.ToolSessionExists,
			backend.ToolCreateSession,
			backend.ToolClearSession,
			backend.ToolConversation,
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil && ctx.Err() == nil {
		lg.Fatal("agent MCP server failed", zap.Error(err))
	}
}
