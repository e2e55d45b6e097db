package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"quiz-taker/internal/attemptstore"
	"quiz-taker/internal/config"
	"quiz-taker/internal/gateway"
	"quiz-taker/internal/logging"
	"quiz-taker/internal/session"
	"quiz-taker/internal/storage"
	"quiz-taker/internal/userclient"
)

func main() {
	cfg, err := config.Read()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.APIBaseURL, "server", cfg.APIBaseURL, "quiz API base URL")
	flag.StringVar(&cfg.AccessToken, "token", cfg.AccessToken, "bearer token sent with every request")
	flag.StringVar(&cfg.StorageBackend, "storage", cfg.StorageBackend, "local attempt storage: sqlite, memory or redis")
	flag.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "SQLite file for local attempts")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for local attempts")
	flag.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.Parse()

	if cfg, err = cfg.Checked(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("quiz-taker stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	kv, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	client := gateway.NewHTTPClient(
		cfg.APIBaseURL,
		&http.Client{Timeout: cfg.HTTPTimeout},
		gateway.WithAccessToken(cfg.AccessToken),
		gateway.WithLogger(logger.With("component", "gateway")),
	)
	attempts := attemptstore.NewStore(kv, cfg.StorageKeyPrefix, logger.With("component", "attemptstore"))
	// Student details last for the process only.
	identities := attemptstore.NewIdentityStore(storage.NewMemoryKV(), cfg.StorageKeyPrefix, logger)

	manager := session.NewManager(client, attempts, identities, session.Config{
		Logger:         logger.With("component", "session"),
		PersistTimeout: cfg.PersistTimeout,
	})
	defer manager.Close()

	return userclient.Run(ctx, os.Stdin, os.Stdout, userclient.Config{
		ServerURL:  cfg.APIBaseURL,
		Backend:    client,
		Session:    manager,
		Identities: identities,
		Logger:     logger,
	})
}

func openStorage(ctx context.Context, cfg config.Config) (storage.KV, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return storage.NewMemoryKV(), nil
	case config.BackendRedis:
		kv, err := storage.NewRedisKV(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		kv, err := storage.NewSQLiteKV(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		return kv, nil
	}
}
