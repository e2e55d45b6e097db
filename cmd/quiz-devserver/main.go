package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-taker/internal/config"
	"quiz-taker/internal/devserver"
	"quiz-taker/internal/logging"
	"quiz-taker/internal/opentdb"
)

func main() {
	cfg, err := config.Read()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	addr := flag.String("addr", cfg.DevServerAddr, "HTTP listen address")
	seedFile := flag.String("seed", "", "JSON file with quizzes to serve instead of the built-in ones")
	triviaCount := flag.Int("trivia", 0, "also serve a quiz of this many OpenTDB questions (max 50)")
	triviaLimit := flag.Int("trivia-minutes", 10, "time limit of the trivia quiz in minutes")
	omitQuestions := flag.Bool("omit-questions", false, "leave questions out of GET /quizzes/{id}")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.Parse()

	if cfg, err = cfg.Checked(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, os.Stderr)

	quizzes := devserver.DefaultQuizzes()
	if *seedFile != "" {
		quizzes, err = devserver.LoadSeedFile(*seedFile)
		if err != nil {
			logger.Error("load seed", "path", *seedFile, "error", err)
			os.Exit(1)
		}
	}
	store := devserver.NewStore(quizzes, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *triviaCount > 0 {
		fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		raw, err := opentdb.NewClient(&http.Client{Timeout: 10 * time.Second}).FetchQuestions(fetchCtx, *triviaCount)
		cancel()
		if err != nil {
			logger.Warn("trivia quiz skipped", "error", err)
		} else {
			nextID := int64(1)
			for _, existing := range store.ListQuizzes("") {
				if existing.ID >= nextID {
					nextID = existing.ID + 1
				}
			}
			store.AddQuiz(devserver.FromTrivia(nextID, "Open Trivia", *triviaLimit, raw, nil))
			logger.Info("trivia quiz added", "quiz_id", nextID, "questions", len(raw))
		}
	}

	server := &http.Server{
		Addr: *addr,
		Handler: devserver.NewRouter(store, devserver.Options{
			OmitQuestions: *omitQuestions,
			Logger:        logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("quiz-devserver listening", "addr", *addr, "quizzes", len(store.ListQuizzes("")))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
