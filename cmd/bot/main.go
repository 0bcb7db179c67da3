package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/asymptotic-code/telegram-bot/internal/analytics"
	"github.com/asymptotic-code/telegram-bot/internal/answer"
	"github.com/asymptotic-code/telegram-bot/internal/auth"
	"github.com/asymptotic-code/telegram-bot/internal/backend"
	"github.com/asymptotic-code/telegram-bot/internal/classifier"
	"github.com/asymptotic-code/telegram-bot/internal/config"
	"github.com/asymptotic-code/telegram-bot/internal/history"
	"github.com/asymptotic-code/telegram-bot/internal/llm"
	"github.com/asymptotic-code/telegram-bot/internal/logger"
	"github.com/asymptotic-code/telegram-bot/internal/scheduler"
	"github.com/asymptotic-code/telegram-bot/internal/storage"
	"github.com/asymptotic-code/telegram-bot/internal/telegram"
)

type store interface {
	storage.Store
	storage.Reporter
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("bot stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	llmClient, err := llm.NewFactory(cfg).Classifier(cfg.ClassifierProvider)
	if err != nil {
		return fmt.Errorf("failed to create classifier llm: %w", err)
	}
	gate := classifier.New(llmClient, cfg.Prompts.Boolean, lg.Named("classifier"))

	conv, err := backend.New(ctx, cfg, lg.Named("backend"))
	if err != nil {
		return fmt.Errorf("failed to create conversation backend: %w", err)
	}
	if c, ok := conv.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	api, err := telegram.Connect(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("failed to connect to telegram: %w", err)
	}

	hist := history.NewAccessor(st, cfg.HistoryLimit)
	pipeline := answer.New(
		hist,
		gate,
		conv,
		telegram.NewMessenger(api),
		answer.OptionsFrom(cfg.Prompts, cfg.ChunkSize, cfg.TruncateAt),
		lg.Named("answer"),
	)

	bot := telegram.New(api, telegram.Deps{
		Pipeline:    pipeline,
		Users:       auth.New(st),
		History:     hist,
		Audit:       st,
		AdminUserID: cfg.AdminUserID,
		Log:         lg.Named("telegram"),
	})

	sched := scheduler.New(cfg.ReportCron, lg.Named("scheduler"))
	if cfg.AdminUserID != 0 {
		sched.SetJob(func(ctx context.Context) error {
			stats, err := analytics.Collect(ctx, st, time.Now().UTC())
			if err != nil {
				return err
			}
			bot.NotifyAdmin(stats.Summary())
			return nil
		})
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	lg.Info("starting bot",
		zap.String("classifier", string(cfg.ClassifierProvider)),
		zap.String("backend", string(cfg.ConversationBackend)),
		zap.String("storage", string(cfg.StorageDriver)),
	)
	bot.Start(ctx)
	return nil
}

func openStore(cfg *config.Config) (store, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		st, err := storage.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverFile:
		st, err := storage.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.StorageDriver)
	}
}
