package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"quiz-taker/internal/attemptstore"
	"quiz-taker/internal/countdown"
	"quiz-taker/internal/gateway"
	"quiz-taker/internal/quiz"
)

const (
	defaultPersistTimeout    = 2 * time.Second
	defaultSubmitConcurrency = 4
)

type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateActive
	StateSubmitting
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	default:
		return "unloaded"
	}
}

// ResumeKind records how the active attempt came to be.
type ResumeKind int

const (
	ResumeNew ResumeKind = iota
	ResumeRestored
	ResumeExpiredReplaced
)

func (k ResumeKind) String() string {
	switch k {
	case ResumeRestored:
		return "restored"
	case ResumeExpiredReplaced:
		return "expired-replaced"
	default:
		return "new"
	}
}

type Remote interface {
	GetQuiz(ctx context.Context, quizID int64) (quiz.Quiz, error)
	ListQuestions(ctx context.Context, quizID int64) ([]quiz.Question, error)
	StartAttempt(ctx context.Context, request gateway.StartAttemptRequest) (quiz.Attempt, error)
	SubmitAnswer(ctx context.Context, request gateway.SubmitAnswerRequest) (quiz.StudentAnswer, error)
}

type IdentitySource interface {
	Load(ctx context.Context) (quiz.StudentIdentity, bool)
}

type Config struct {
	Logger *slog.Logger
	Now    func() time.Time
	// PersistTimeout bounds every answer submission, opportunistic or not.
	PersistTimeout    time.Duration
	SubmitConcurrency int
	TickInterval      time.Duration
}

// Manager drives one student through one quiz at a time: load, resume or
// start, capture answers, submit. It is safe for concurrent use but expects a
// single driver.
type Manager struct {
	remote     Remote
	store      *attemptstore.Store
	identities IdentitySource
	clock      *countdown.Controller
	log        *slog.Logger
	now        func() time.Time

	persistTimeout    time.Duration
	submitConcurrency int

	mu      sync.Mutex
	state   State
	resume  ResumeKind
	current quiz.Quiz
	attempt attemptstore.LocalAttempt
	result  Result

	inflight sync.WaitGroup
}

func NewManager(remote Remote, store *attemptstore.Store, identities IdentitySource, cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	persistTimeout := cfg.PersistTimeout
	if persistTimeout <= 0 {
		persistTimeout = defaultPersistTimeout
	}
	concurrency := cfg.SubmitConcurrency
	if concurrency <= 0 {
		concurrency = defaultSubmitConcurrency
	}

	return &Manager{
		remote:            remote,
		store:             store,
		identities:        identities,
		clock:             countdown.New(countdown.WithClock(now), countdown.WithInterval(cfg.TickInterval)),
		log:               logger,
		now:               now,
		persistTimeout:    persistTimeout,
		submitConcurrency: concurrency,
	}
}

// Countdown exposes the controller driving the active attempt so callers can
// render ticks and watch for expiry.
func (m *Manager) Countdown() *countdown.Controller {
	return m.clock
}

// Load fetches quizID and enters the active state, resuming the stored
// attempt when it still has time left and replacing it otherwise.
func (m *Manager) Load(ctx context.Context, quizID int64) (Snapshot, error) {
	m.mu.Lock()
	if m.state == StateSubmitting || m.state == StateLoading {
		m.mu.Unlock()
		return Snapshot{}, ErrBusy
	}
	identity, ok := m.identities.Load(ctx)
	if !ok || !identity.CanStartServerAttempt() {
		m.mu.Unlock()
		return Snapshot{}, ErrNoIdentity
	}
	m.state = StateLoading
	m.clock.Clear()
	m.mu.Unlock()

	loaded, err := m.fetchQuiz(ctx, quizID)
	if err != nil {
		m.mu.Lock()
		m.state = StateUnloaded
		m.mu.Unlock()
		return Snapshot{}, &LoadError{QuizID: quizID, Err: err}
	}

	attempt, resume := m.resumeOrStart(ctx, loaded, identity)

	m.mu.Lock()
	m.current = loaded
	m.attempt = attempt
	m.resume = resume
	m.result = Result{}
	m.state = StateActive
	m.clock.SetEnd(attempt.EndAt(loaded.Duration()))
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.log.Info("attempt active",
		"quiz_id", loaded.ID,
		"attempt_id", attempt.Token,
		"resume", resume.String(),
		"answered", len(attempt.Answers),
	)
	return snapshot, nil
}

func (m *Manager) fetchQuiz(ctx context.Context, quizID int64) (quiz.Quiz, error) {
	loaded, err := m.remote.GetQuiz(ctx, quizID)
	if err != nil {
		return quiz.Quiz{}, err
	}
	if loaded.ID == 0 {
		loaded.ID = quizID
	}
	if len(loaded.Questions) > 0 {
		return loaded, nil
	}

	questions, err := m.remote.ListQuestions(ctx, quizID)
	if err != nil {
		return quiz.Quiz{}, err
	}
	loaded.Questions = questions
	if loaded.NumberOfQuestions == 0 {
		loaded.NumberOfQuestions = len(questions)
	}
	return loaded, nil
}

func (m *Manager) resumeOrStart(ctx context.Context, loaded quiz.Quiz, identity quiz.StudentIdentity) (attemptstore.LocalAttempt, ResumeKind) {
	now := m.now()
	resume := ResumeNew

	if existing, ok := m.store.FindByQuiz(ctx, loaded.ID); ok {
		if now.Before(existing.EndAt(loaded.Duration())) {
			return existing, ResumeRestored
		}
		m.log.Info("discarding expired local attempt",
			"quiz_id", loaded.ID,
			"attempt_id", existing.Token,
			"started_at", existing.StartAt,
		)
		m.store.RemoveByQuiz(ctx, loaded.ID)
		resume = ResumeExpiredReplaced
	}

	attempt := attemptstore.LocalAttempt{
		Token:   attemptstore.NewToken(),
		QuizID:  loaded.ID,
		Student: identity,
		StartAt: now,
		Answers: map[int64]string{},
	}
	m.store.Save(ctx, attempt)
	return attempt, resume
}

// Select applies one option choice to a question and returns the question's
// new answer value. Single-choice questions take the token, multiple-choice
// questions toggle it.
func (m *Manager) Select(ctx context.Context, questionID int64, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return "", ErrNotActive
	}
	if m.clock.Remaining().Expired {
		return "", ErrTimeExpired
	}
	question, ok := m.current.Question(questionID)
	if !ok {
		return "", ErrUnknownQuestion
	}
	option, ok := question.OptionByValue(token)
	if !ok {
		return "", ErrUnknownOption
	}

	next := quiz.ApplySelection(question, m.attempt.Answers[questionID], token)
	if next == "" {
		delete(m.attempt.Answers, questionID)
	} else {
		m.attempt.Answers[questionID] = next
	}
	m.store.UpdateAnswer(ctx, m.attempt.Token, questionID, next)

	if m.attempt.ServerAttemptID != 0 && question.Selected(next, token) && !option.Synthetic {
		m.submitInBackground(gateway.SubmitAnswerRequest{
			AttemptID:        m.attempt.ServerAttemptID,
			QuestionID:       questionID,
			SelectedOptionID: option.ID,
		})
	}
	return next, nil
}

func (m *Manager) submitInBackground(request gateway.SubmitAnswerRequest) {
	// Not awaited by Submit; Close waits for these.
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.persistTimeout)
		defer cancel()
		if _, err := m.remote.SubmitAnswer(ctx, request); err != nil {
			m.log.Warn("answer submit failed",
				"attempt_id", request.AttemptID,
				"question_id", request.QuestionID,
				"option_id", request.SelectedOptionID,
				"error", err,
			)
		}
	}()
}

// Result summarises one submission pass. Success is reported regardless of
// how many answers reached the server.
type Result struct {
	QuizID          int64
	ServerAttemptID int64
	Attempted       int
	Submitted       int
	Failed          int
	Skipped         int
}

// Submit sends every recorded answer, then drops the local attempt so the
// quiz can be retaken. Remote failures are logged, never returned.
func (m *Manager) Submit(ctx context.Context) (Result, error) {
	m.mu.Lock()
	if state := m.state; state != StateActive {
		m.mu.Unlock()
		if state == StateSubmitting {
			return Result{}, ErrBusy
		}
		return Result{}, ErrNotActive
	}
	if m.clock.Remaining().Expired && len(m.attempt.Answers) == 0 {
		m.mu.Unlock()
		return Result{}, ErrNothingToSubmit
	}
	m.state = StateSubmitting
	attempt := m.attempt.Clone()
	current := m.current
	m.mu.Unlock()

	// Dispatched submissions run to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	result := Result{QuizID: current.ID}
	serverAttemptID := m.ensureServerAttempt(ctx, &attempt)
	result.ServerAttemptID = serverAttemptID

	if serverAttemptID != 0 {
		requests, skipped := collectSubmissions(current, attempt)
		result.Attempted = len(requests)
		result.Skipped = skipped
		submitted, failed := m.submitAll(ctx, requests)
		result.Submitted = submitted
		result.Failed = failed
	}

	m.store.RemoveByQuiz(ctx, current.ID)

	m.mu.Lock()
	m.attempt = attempt
	m.result = result
	m.state = StateSubmitted
	m.clock.Clear()
	m.mu.Unlock()

	m.log.Info("attempt submitted",
		"quiz_id", current.ID,
		"attempt_id", attempt.Token,
		"server_attempt_id", serverAttemptID,
		"submitted", result.Submitted,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return result, nil
}

// ensureServerAttempt links a server attempt on first submission. A failure
// leaves the attempt local-only.
func (m *Manager) ensureServerAttempt(ctx context.Context, attempt *attemptstore.LocalAttempt) int64 {
	if attempt.ServerAttemptID != 0 {
		return attempt.ServerAttemptID
	}
	if !attempt.Student.CanStartServerAttempt() {
		m.log.Warn("local attempt has no student snapshot, skipping server attempt", "attempt_id", attempt.Token)
		return 0
	}

	startCtx, cancel := context.WithTimeout(ctx, m.persistTimeout)
	defer cancel()
	created, err := m.remote.StartAttempt(startCtx, gateway.StartAttemptRequest{
		QuizID:      attempt.QuizID,
		StudentName: attempt.Student.Name,
		DateOfBirth: attempt.Student.DateOfBirth,
		ClassName:   attempt.Student.ClassName,
	})
	if err != nil {
		m.log.Warn("start attempt failed, answers stay local",
			"quiz_id", attempt.QuizID,
			"attempt_id", attempt.Token,
			"error", err,
		)
		return 0
	}

	attempt.ServerAttemptID = created.ID
	m.store.Save(ctx, *attempt)
	return created.ID
}

type answerKey struct {
	questionID int64
	optionID   int64
}

// collectSubmissions resolves recorded tokens to option ids in question
// order. Each (question, option) pair appears once.
func collectSubmissions(current quiz.Quiz, attempt attemptstore.LocalAttempt) ([]gateway.SubmitAnswerRequest, int) {
	seen := make(map[answerKey]struct{})
	requests := make([]gateway.SubmitAnswerRequest, 0, len(attempt.Answers))
	skipped := 0
	known := make(map[int64]struct{}, len(current.Questions))

	for _, question := range current.Questions {
		known[question.ID] = struct{}{}
		for _, token := range question.Tokens(attempt.Answers[question.ID]) {
			option, ok := question.OptionByValue(token)
			if !ok || option.Synthetic {
				skipped++
				continue
			}
			key := answerKey{questionID: question.ID, optionID: option.ID}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			requests = append(requests, gateway.SubmitAnswerRequest{
				AttemptID:        attempt.ServerAttemptID,
				QuestionID:       question.ID,
				SelectedOptionID: option.ID,
			})
		}
	}
	for questionID := range attempt.Answers {
		if _, ok := known[questionID]; !ok {
			skipped++
		}
	}
	return requests, skipped
}

func (m *Manager) submitAll(ctx context.Context, requests []gateway.SubmitAnswerRequest) (int, int) {
	var submitted, failed atomic.Int64
	var group errgroup.Group
	group.SetLimit(m.submitConcurrency)

	for _, request := range requests {
		group.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, m.persistTimeout)
			defer cancel()
			if _, err := m.remote.SubmitAnswer(callCtx, request); err != nil {
				failed.Add(1)
				m.log.Warn("answer submit failed",
					"attempt_id", request.AttemptID,
					"question_id", request.QuestionID,
					"option_id", request.SelectedOptionID,
					"error", err,
				)
				return nil
			}
			submitted.Add(1)
			return nil
		})
	}
	_ = group.Wait()
	return int(submitted.Load()), int(failed.Load())
}

// Close waits for background answer submissions to settle.
func (m *Manager) Close() {
	m.inflight.Wait()
	m.clock.Clear()
}
