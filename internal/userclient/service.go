package userclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"quiz-taker/internal/countdown"
	"quiz-taker/internal/gateway"
	"quiz-taker/internal/quiz"
	"quiz-taker/internal/session"
)

const (
	defaultQuizzesLimit     = 10
	defaultAttemptsLimit    = 10
	defaultAnswersLimit     = 25
	defaultMaxInvalidInputs = 3
)

// Backend is the read side of the quiz API used by the listing and review
// commands.
type Backend interface {
	ListQuizzes(ctx context.Context, params gateway.PageParams) (quiz.Page[quiz.Quiz], error)
	GetQuiz(ctx context.Context, quizID int64) (quiz.Quiz, error)
	ListQuestions(ctx context.Context, quizID int64) ([]quiz.Question, error)
	ListAttemptsByQuiz(ctx context.Context, quizID int64, params gateway.PageParams) (quiz.Page[quiz.Attempt], error)
	GetAttempt(ctx context.Context, attemptID int64) (quiz.Attempt, error)
	ListAnswersByAttempt(ctx context.Context, attemptID int64, params gateway.PageParams) (quiz.Page[quiz.StudentAnswer], error)
}

type Session interface {
	Load(ctx context.Context, quizID int64) (session.Snapshot, error)
	Select(ctx context.Context, questionID int64, token string) (string, error)
	Submit(ctx context.Context) (session.Result, error)
	Snapshot() session.Snapshot
	Review() (session.Result, []session.ReviewItem, error)
	Countdown() *countdown.Controller
}

type Identities interface {
	Save(ctx context.Context, identity quiz.StudentIdentity)
	Load(ctx context.Context) (quiz.StudentIdentity, bool)
}

type Config struct {
	ServerURL  string
	Backend    Backend
	Session    Session
	Identities Identities
	Logger     *slog.Logger

	QuizzesLimit     int
	AttemptsLimit    int
	AnswersLimit     int
	MaxInvalidInputs int
}

type app struct {
	reader     *bufio.Reader
	out        io.Writer
	serverURL  string
	backend    Backend
	session    Session
	identities Identities
	log        *slog.Logger

	quizzesLimit     int
	attemptsLimit    int
	answersLimit     int
	maxInvalidInputs int
}

// lockedWriter serializes writes from the countdown watcher and the command
// loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func Run(ctx context.Context, in io.Reader, out io.Writer, cfg Config) error {
	if cfg.Backend == nil || cfg.Session == nil || cfg.Identities == nil {
		return errors.New("backend, session and identity store are required")
	}

	a := &app{
		reader:           bufio.NewReader(in),
		out:              &lockedWriter{w: out},
		serverURL:        strings.TrimSpace(cfg.ServerURL),
		backend:          cfg.Backend,
		session:          cfg.Session,
		identities:       cfg.Identities,
		log:              cfg.Logger,
		quizzesLimit:     positiveOr(cfg.QuizzesLimit, defaultQuizzesLimit),
		attemptsLimit:    positiveOr(cfg.AttemptsLimit, defaultAttemptsLimit),
		answersLimit:     positiveOr(cfg.AnswersLimit, defaultAnswersLimit),
		maxInvalidInputs: positiveOr(cfg.MaxInvalidInputs, defaultMaxInvalidInputs),
	}
	if a.serverURL == "" {
		a.serverURL = gateway.DefaultBaseURL
	}
	if a.log == nil {
		a.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.loop(ctx)
}

func (a *app) loop(ctx context.Context) error {
	out := a.out
	fmt.Fprintf(out, "quiz-taker\nserver=%s\n", a.serverURL)
	if identity, ok := a.identities.Load(ctx); ok {
		fmt.Fprintf(out, "student=%s\n", identity.Name)
	}
	fmt.Fprintln(out)
	printHelp(out)

	for {
		fmt.Fprint(out, "\n> ")
		line, err := a.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		command := strings.ToLower(args[0])

		switch command {
		case "help":
			printHelp(out)
		case "exit", "quit":
			return nil
		case "whoami":
			a.runWhoAmI(ctx)
		case "identity":
			if err := a.runIdentity(ctx); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "quizzes":
			page, keyword, parseErr := parsePageAndKeyword(args, 1)
			if parseErr != nil {
				fmt.Fprintf(out, "invalid page: %v\n", parseErr)
				continue
			}
			if err := a.runQuizzes(ctx, page, keyword); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "play":
			if len(args) != 2 {
				fmt.Fprintln(out, "usage: play <quiz_id>")
				continue
			}
			quizID, parseErr := parseID(args[1])
			if parseErr != nil {
				fmt.Fprintf(out, "invalid quiz id: %v\n", parseErr)
				continue
			}
			if err := a.runPlay(ctx, quizID); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "attempts":
			if len(args) < 2 {
				fmt.Fprintln(out, "usage: attempts <quiz_id> [page] [keyword]")
				continue
			}
			quizID, parseErr := parseID(args[1])
			if parseErr != nil {
				fmt.Fprintf(out, "invalid quiz id: %v\n", parseErr)
				continue
			}
			page, keyword, parseErr := parsePageAndKeyword(args, 2)
			if parseErr != nil {
				fmt.Fprintf(out, "invalid page: %v\n", parseErr)
				continue
			}
			if err := a.runAttempts(ctx, quizID, page, keyword); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "answers":
			if len(args) < 2 || len(args) > 3 {
				fmt.Fprintln(out, "usage: answers <attempt_id> [page]")
				continue
			}
			attemptID, parseErr := parseID(args[1])
			if parseErr != nil {
				fmt.Fprintf(out, "invalid attempt id: %v\n", parseErr)
				continue
			}
			page, parseErr := parsePositiveInt(args, 2, 1)
			if parseErr != nil {
				fmt.Fprintf(out, "invalid page: %v\n", parseErr)
				continue
			}
			if err := a.runAnswers(ctx, attemptID, page); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		default:
			fmt.Fprintln(out, "unknown command. type 'help' for usage.")
		}
	}
}

func (a *app) runWhoAmI(ctx context.Context) {
	identity, ok := a.identities.Load(ctx)
	if !ok {
		fmt.Fprintln(a.out, "No student details yet. Use 'identity' to enter them.")
		return
	}
	fmt.Fprintf(a.out, "%s, born %s", identity.Name, identity.DateOfBirth)
	if identity.ClassName != "" {
		fmt.Fprintf(a.out, ", class %s", identity.ClassName)
	}
	fmt.Fprintln(a.out)
}

func (a *app) runIdentity(ctx context.Context) error {
	identity, err := promptIdentity(a.reader, a.out, a.maxInvalidInputs)
	if err != nil {
		return err
	}
	a.identities.Save(ctx, identity)
	fmt.Fprintf(a.out, "Saved. Hello, %s.\n", identity.Name)
	return nil
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
