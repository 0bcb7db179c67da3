// Command test-mcp runs one conversation round trip through the agent MCP
// server, the way the bot does with CONVERSATION_BACKEND=tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/asymptotic-code/telegram-bot/internal/backend"
	"github.com/asymptotic-code/telegram-bot/internal/session"
)

func main() {
	server := flag.String("server", "./agent-mcp-server", "path to the agent MCP server binary")
	question := flag.String("q", "Is Sui Move memory safe?", "question to send")
	keep := flag.Bool("keep", false, "keep the test session instead of clearing it")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	fmt.Println("🧪 Testing agent MCP integration")
	fmt.Println("================================")
	fmt.Printf("🔗 Starting %s %s\n", *server, strings.Join(flag.Args(), " "))

	b, err := backend.ConnectTool(ctx, *server, flag.Args(), nil)
	if err != nil {
		fmt.Printf("❌ Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()
	fmt.Println("✅ Connected")

	key := session.Key(0, session.OriginPrivate, 0)
	if err := backend.EnsureSession(ctx, b, key); err != nil {
		fmt.Printf("❌ Session %s: %v\n", key, err)
		os.Exit(1)
	}
	fmt.Printf("✅ Session %s ready\n", key)

	start := time.Now()
	answer, err := b.Converse(ctx, *question, key)
	if err != nil {
		fmt.Printf("❌ Conversation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Answer in %s:\n%s\n", time.Since(start).Round(time.Millisecond), answer)

	if !*keep {
		if err := b.ClearSession(ctx, key); err != nil {
			fmt.Printf("❌ Clear failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✅ Session cleared")
	}
}
