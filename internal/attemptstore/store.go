package attemptstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-taker/internal/quiz"
	"quiz-taker/internal/storage"
)

const (
	DefaultKeyPrefix = "quizteacherfe"
	attemptsKey      = "_local_attempts"
	identityKey      = "_student_info"
	tokenPrefix      = "local_"
)

// LocalAttempt is the client-owned record of an attempt in progress. The JSON
// layout is the persisted format.
type LocalAttempt struct {
	Token           string               `json:"attemptId"`
	QuizID          int64                `json:"quizId"`
	Student         quiz.StudentIdentity `json:"studentInfo"`
	StartAt         time.Time            `json:"startAt"`
	Answers         map[int64]string     `json:"answers"`
	ServerAttemptID int64                `json:"serverAttemptId,omitempty"`
}

func NewToken() string {
	return tokenPrefix + uuid.NewString()
}

// EndAt is the instant the attempt runs out for a quiz of the given duration.
func (a LocalAttempt) EndAt(duration time.Duration) time.Time {
	return a.StartAt.Add(duration)
}

func (a LocalAttempt) Clone() LocalAttempt {
	answers := make(map[int64]string, len(a.Answers))
	for questionID, value := range a.Answers {
		answers[questionID] = value
	}
	a.Answers = answers
	return a
}

// Store keeps every LocalAttempt under one key as a token -> attempt mapping.
// Storage failures are logged and treated as empty state; writes are best
// effort. At most one attempt per quiz is the caller's responsibility.
type Store struct {
	mu  sync.Mutex
	kv  storage.KV
	key string
	log *slog.Logger
}

func NewStore(kv storage.KV, prefix string, logger *slog.Logger) *Store {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		kv:  kv,
		key: prefix + attemptsKey,
		log: logger,
	}
}

func (s *Store) Save(ctx context.Context, attempt LocalAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := s.load(ctx)
	attempts[attempt.Token] = attempt.Clone()
	s.persist(ctx, attempts)
}

func (s *Store) Get(ctx context.Context, token string) (LocalAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.load(ctx)[token]
	return attempt, ok
}

func (s *Store) All(ctx context.Context) map[string]LocalAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx)
}

// FindByQuiz returns the attempt recorded for quizID. Should several exist,
// the earliest started one is returned so the choice is stable.
func (s *Store) FindByQuiz(ctx context.Context, quizID int64) (LocalAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := s.load(ctx)
	token, ok := findToken(attempts, quizID)
	if !ok {
		return LocalAttempt{}, false
	}
	return attempts[token], true
}

// UpdateAnswer records value for questionID. An empty value clears the
// question. Unknown tokens are ignored.
func (s *Store) UpdateAnswer(ctx context.Context, token string, questionID int64, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := s.load(ctx)
	attempt, ok := attempts[token]
	if !ok {
		return
	}
	if value == "" {
		delete(attempt.Answers, questionID)
	} else {
		attempt.Answers[questionID] = value
	}
	attempts[token] = attempt
	s.persist(ctx, attempts)
}

func (s *Store) Remove(ctx context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := s.load(ctx)
	if _, ok := attempts[token]; !ok {
		return
	}
	delete(attempts, token)
	s.persist(ctx, attempts)
}

func (s *Store) RemoveByQuiz(ctx context.Context, quizID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := s.load(ctx)
	token, ok := findToken(attempts, quizID)
	if !ok {
		return
	}
	delete(attempts, token)
	s.persist(ctx, attempts)
}

func (s *Store) load(ctx context.Context) map[string]LocalAttempt {
	attempts := make(map[string]LocalAttempt)

	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.log.Warn("local attempts unavailable, treating as empty", "key", s.key, "error", err)
		return attempts
	}
	if !ok || len(raw) == 0 {
		return attempts
	}
	if err := json.Unmarshal(raw, &attempts); err != nil {
		s.log.Warn("local attempts corrupted, treating as empty", "key", s.key, "error", err)
		return make(map[string]LocalAttempt)
	}

	for token, attempt := range attempts {
		if attempt.Answers == nil {
			attempt.Answers = make(map[int64]string)
		}
		if attempt.Token == "" {
			attempt.Token = token
		}
		attempts[token] = attempt
	}
	return attempts
}

func (s *Store) persist(ctx context.Context, attempts map[string]LocalAttempt) {
	encoded, err := json.Marshal(attempts)
	if err != nil {
		s.log.Error("encode local attempts", "error", err)
		return
	}
	if err := s.kv.Set(ctx, s.key, encoded); err != nil {
		s.log.Warn("persist local attempts", "key", s.key, "error", err)
	}
}

func findToken(attempts map[string]LocalAttempt, quizID int64) (string, bool) {
	matches := make([]LocalAttempt, 0, 1)
	for _, attempt := range attempts {
		if attempt.QuizID == quizID {
			matches = append(matches, attempt)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].StartAt.Equal(matches[j].StartAt) {
			return matches[i].StartAt.Before(matches[j].StartAt)
		}
		return matches[i].Token < matches[j].Token
	})
	return matches[0].Token, true
}
