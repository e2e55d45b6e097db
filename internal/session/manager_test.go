package session

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quiz-taker/internal/attemptstore"
	"quiz-taker/internal/gateway"
	"quiz-taker/internal/quiz"
	"quiz-taker/internal/storage"
)

const (
	singleQuestionID   int64 = 1
	multipleQuestionID int64 = 2
)

type fakeRemote struct {
	mu sync.Mutex

	quiz      quiz.Quiz
	questions []quiz.Question

	getErr         error
	listErr        error
	startErr       error
	failOnQuestion map[int64]bool

	getCalls  int
	listCalls int
	starts    []gateway.StartAttemptRequest
	submits   []gateway.SubmitAnswerRequest
}

func (f *fakeRemote) GetQuiz(_ context.Context, quizID int64) (quiz.Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return quiz.Quiz{}, f.getErr
	}
	loaded := f.quiz
	loaded.ID = quizID
	return loaded, nil
}

func (f *fakeRemote) ListQuestions(context.Context, int64) ([]quiz.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.questions, nil
}

func (f *fakeRemote) StartAttempt(_ context.Context, request gateway.StartAttemptRequest) (quiz.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, request)
	if f.startErr != nil {
		return quiz.Attempt{}, f.startErr
	}
	return quiz.Attempt{ID: 500 + int64(len(f.starts)), QuizID: request.QuizID}, nil
}

func (f *fakeRemote) SubmitAnswer(_ context.Context, request gateway.SubmitAnswerRequest) (quiz.StudentAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, request)
	if f.failOnQuestion[request.QuestionID] {
		return quiz.StudentAnswer{}, errors.New("boom")
	}
	return quiz.StudentAnswer{AttemptID: request.AttemptID, QuestionID: request.QuestionID, SelectedOptionID: request.SelectedOptionID}, nil
}

func (f *fakeRemote) submitted() []gateway.SubmitAnswerRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]gateway.SubmitAnswerRequest(nil), f.submits...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuestionID != out[j].QuestionID {
			return out[i].QuestionID < out[j].QuestionID
		}
		return out[i].SelectedOptionID < out[j].SelectedOptionID
	})
	return out
}

func sampleQuiz(minutes int) quiz.Quiz {
	return quiz.Quiz{
		Title:     "Science",
		TimeLimit: minutes,
		Questions: []quiz.Question{
			{
				ID:      singleQuestionID,
				Content: "Closest planet to the sun?",
				Kind:    quiz.KindSingleChoice,
				Points:  1,
				Options: []quiz.Option{
					{ID: 11, Label: "Venus", Value: "A"},
					{ID: 12, Label: "Mercury", Value: "B", IsCorrect: true},
					{ID: 13, Label: "Mars", Value: "C"},
				},
				Explanation: "Mercury orbits closest.",
			},
			{
				ID:      multipleQuestionID,
				Content: "Which are gas giants?",
				Kind:    quiz.KindMultipleChoice,
				Points:  2,
				Options: []quiz.Option{
					{ID: 21, Label: "Jupiter", Value: "A", IsCorrect: true},
					{ID: 22, Label: "Saturn", Value: "B", IsCorrect: true},
					{ID: 23, Label: "Earth", Value: "C"},
				},
			},
		},
	}
}

type harness struct {
	remote     *fakeRemote
	store      *attemptstore.Store
	identities *attemptstore.IdentityStore
	manager    *Manager
	now        time.Time
	nowMu      sync.Mutex
}

func (h *harness) clock() time.Time {
	h.nowMu.Lock()
	defer h.nowMu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.nowMu.Lock()
	defer h.nowMu.Unlock()
	h.now = h.now.Add(d)
}

func newHarness(t *testing.T, minutes int) *harness {
	t.Helper()
	h := &harness{
		remote: &fakeRemote{quiz: sampleQuiz(minutes)},
		now:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	kv := storage.NewMemoryKV()
	h.store = attemptstore.NewStore(kv, "test", nil)
	h.identities = attemptstore.NewIdentityStore(storage.NewMemoryKV(), "test", nil)
	h.identities.Save(context.Background(), quiz.StudentIdentity{Name: "Lan", DateOfBirth: "2010-01-02", ClassName: "7A"})
	h.manager = NewManager(h.remote, h.store, h.identities, Config{Now: h.clock})
	t.Cleanup(h.manager.Close)
	return h
}

func TestLoadRequiresIdentity(t *testing.T) {
	h := newHarness(t, 30)
	h.identities.Clear(context.Background())

	_, err := h.manager.Load(context.Background(), 7)
	require.ErrorIs(t, err, ErrNoIdentity)
	require.Equal(t, 0, h.remote.getCalls)
	require.Equal(t, StateUnloaded, h.manager.Snapshot().State)
}

func TestLoadStartsNewAttempt(t *testing.T) {
	h := newHarness(t, 30)
	ctx := context.Background()

	snapshot, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, StateActive, snapshot.State)
	require.Equal(t, ResumeNew, snapshot.Resume)
	require.Empty(t, snapshot.Answers)
	require.True(t, snapshot.StartAt.Equal(h.clock()))
	require.Equal(t, "30:00", snapshot.Remaining.String())

	stored, ok := h.store.FindByQuiz(ctx, 7)
	require.True(t, ok)
	require.Equal(t, snapshot.AttemptToken, stored.Token)
	require.True(t, stored.StartAt.Equal(h.clock()))
	require.Equal(t, "Lan", stored.Student.Name)

	h.advance(time.Second)
	remaining := h.manager.Countdown().Remaining()
	require.Equal(t, 29, remaining.Minutes)
	require.Equal(t, 59, remaining.Seconds)
}

func TestLoadRestoresUnexpiredAttempt(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	existing := attemptstore.LocalAttempt{
		Token:   "local_existing",
		QuizID:  7,
		Student: quiz.StudentIdentity{Name: "Lan", DateOfBirth: "2010-01-02"},
		StartAt: h.clock().Add(-5 * time.Minute),
		Answers: map[int64]string{singleQuestionID: "B", multipleQuestionID: "A,C"},
	}
	h.store.Save(ctx, existing)

	snapshot, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, ResumeRestored, snapshot.Resume)
	require.Equal(t, "local_existing", snapshot.AttemptToken)
	require.Equal(t, existing.Answers, snapshot.Answers)
	require.Equal(t, "05:00", snapshot.Remaining.String())
	require.Equal(t, 2, snapshot.Answered)
}

func TestLoadReplacesExpiredAttempt(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	h.store.Save(ctx, attemptstore.LocalAttempt{
		Token:   "local_old",
		QuizID:  7,
		StartAt: h.clock().Add(-20 * time.Minute),
		Answers: map[int64]string{singleQuestionID: "B"},
	})

	snapshot, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, ResumeExpiredReplaced, snapshot.Resume)
	require.NotEqual(t, "local_old", snapshot.AttemptToken)
	require.Empty(t, snapshot.Answers)
	require.True(t, snapshot.StartAt.Equal(h.clock()))

	_, ok := h.store.Get(ctx, "local_old")
	require.False(t, ok)
	require.Len(t, h.store.All(ctx), 1)
}

func TestLoadReplacesAttemptEndingExactlyNow(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	h.store.Save(ctx, attemptstore.LocalAttempt{
		Token:   "local_old",
		QuizID:  7,
		StartAt: h.clock().Add(-10 * time.Minute),
		Answers: map[int64]string{},
	})

	snapshot, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, ResumeExpiredReplaced, snapshot.Resume)
}

func TestLoadFetchesQuestionsSeparatelyWhenMissing(t *testing.T) {
	h := newHarness(t, 10)
	h.remote.questions = h.remote.quiz.Questions
	h.remote.quiz.Questions = nil

	snapshot, err := h.manager.Load(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, h.remote.listCalls)
	require.Equal(t, 2, snapshot.TotalQuestions)
	require.Equal(t, 3, snapshot.TotalPoints)
}

func TestLoadFailureIsRetryableError(t *testing.T) {
	h := newHarness(t, 10)
	h.remote.getErr = errors.Join(gateway.ErrServiceUnavailable, errors.New("dial"))

	_, err := h.manager.Load(context.Background(), 7)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	require.True(t, loadErr.Retryable())
	require.Equal(t, StateUnloaded, h.manager.Snapshot().State)
	require.Empty(t, h.store.All(context.Background()))

	h.remote.getErr = &gateway.APIError{StatusCode: http.StatusNotFound, Message: "quiz not found"}
	_, err = h.manager.Load(context.Background(), 7)
	require.ErrorAs(t, err, &loadErr)
	require.False(t, loadErr.Retryable())

	h.remote.getErr = nil
	h.remote.quiz.Questions = nil
	h.remote.listErr = errors.New("questions down")
	_, err = h.manager.Load(context.Background(), 7)
	require.ErrorAs(t, err, &loadErr)
}

func TestSelectSingleChoiceReplaces(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	snapshot, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)

	_, err = h.manager.Select(ctx, singleQuestionID, "B")
	require.NoError(t, err)
	answer, err := h.manager.Select(ctx, singleQuestionID, "C")
	require.NoError(t, err)
	require.Equal(t, "C", answer)

	stored, _ := h.store.Get(ctx, snapshot.AttemptToken)
	require.Equal(t, "C", stored.Answers[singleQuestionID])
}

func TestSelectMultipleChoiceTogglesAndSubmitsOnce(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	_, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)

	for _, token := range []string{"A", "B", "A"} {
		_, err := h.manager.Select(ctx, multipleQuestionID, token)
		require.NoError(t, err)
	}
	require.Equal(t, "B", h.manager.Snapshot().Answers[multipleQuestionID])

	result, err := h.manager.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Submitted)
	require.Equal(t, []gateway.SubmitAnswerRequest{
		{AttemptID: result.ServerAttemptID, QuestionID: multipleQuestionID, SelectedOptionID: 22},
	}, h.remote.submitted())
}

func TestSelectTogglingLastTokenClearsAnswer(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	snapshot, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)

	_, err = h.manager.Select(ctx, multipleQuestionID, "A")
	require.NoError(t, err)
	answer, err := h.manager.Select(ctx, multipleQuestionID, "A")
	require.NoError(t, err)
	require.Equal(t, "", answer)

	stored, _ := h.store.Get(ctx, snapshot.AttemptToken)
	_, present := stored.Answers[multipleQuestionID]
	require.False(t, present)
}

func TestSelectRejectsUnknownTargets(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	_, err := h.manager.Select(ctx, singleQuestionID, "A")
	require.ErrorIs(t, err, ErrNotActive)

	_, err = h.manager.Load(ctx, 7)
	require.NoError(t, err)

	_, err = h.manager.Select(ctx, 99, "A")
	require.ErrorIs(t, err, ErrUnknownQuestion)
	_, err = h.manager.Select(ctx, singleQuestionID, "Z")
	require.ErrorIs(t, err, ErrUnknownOption)
}

func TestExpiredAttemptIsReadOnly(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	_, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)

	_, err = h.manager.Select(ctx, singleQuestionID, "B")
	require.NoError(t, err)

	h.advance(11 * time.Minute)
	_, err = h.manager.Select(ctx, singleQuestionID, "C")
	require.ErrorIs(t, err, ErrTimeExpired)

	snapshot := h.manager.Snapshot()
	require.True(t, snapshot.ReadOnly)
	require.True(t, snapshot.Remaining.Expired)
	require.Equal(t, "B", snapshot.Answers[singleQuestionID])

	result, err := h.manager.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Submitted)
}

func TestExpiredAttemptWithoutAnswersCannotSubmit(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	_, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)

	h.advance(10 * time.Minute)
	_, err = h.manager.Submit(ctx)
	require.ErrorIs(t, err, ErrNothingToSubmit)
	require.Empty(t, h.remote.starts)
	require.Equal(t, StateActive, h.manager.Snapshot().State)
}

func TestSubmitWithoutAnswersBeforeExpiryIsAllowed(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	_, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)

	result, err := h.manager.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, result.Attempted)
	require.Len(t, h.remote.starts, 1)
	require.Equal(t, StateSubmitted, h.manager.Snapshot().State)
}

func TestSubmitLinksServerAttemptAndClearsLocal(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	_, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)

	_, err = h.manager.Select(ctx, singleQuestionID, "B")
	require.NoError(t, err)
	_, err = h.manager.Select(ctx, multipleQuestionID, "A")
	require.NoError(t, err)
	_, err = h.manager.Select(ctx, multipleQuestionID, "B")
	require.NoError(t, err)

	result, err := h.manager.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(501), result.ServerAttemptID)
	require.Equal(t, 3, result.Attempted)
	require.Equal(t, 3, result.Submitted)
	require.Zero(t, result.Failed)

	require.Equal(t, []gateway.StartAttemptRequest{
		{QuizID: 7, StudentName: "Lan", DateOfBirth: "2010-01-02", ClassName: "7A"},
	}, h.remote.starts)
	require.Equal(t, []gateway.SubmitAnswerRequest{
		{AttemptID: 501, QuestionID: singleQuestionID, SelectedOptionID: 12},
		{AttemptID: 501, QuestionID: multipleQuestionID, SelectedOptionID: 21},
		{AttemptID: 501, QuestionID: multipleQuestionID, SelectedOptionID: 22},
	}, h.remote.submitted())

	_, ok := h.store.FindByQuiz(ctx, 7)
	require.False(t, ok)
	require.True(t, h.manager.Countdown().Remaining().Idle)
}

func TestSubmitDeduplicatesPairsWithinOnePass(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	h.store.Save(ctx, attemptstore.LocalAttempt{
		Token:   "local_dup",
		QuizID:  7,
		Student: quiz.StudentIdentity{Name: "Lan", DateOfBirth: "2010-01-02"},
		StartAt: h.clock(),
		Answers: map[int64]string{multipleQuestionID: "A,B,A,B"},
	})
	_, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)

	result, err := h.manager.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Attempted)
	require.Len(t, h.remote.submitted(), 2)
}

func TestSubmitSurvivesStartAttemptFailure(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	h.remote.startErr = errors.New("backend down")

	_, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)
	_, err = h.manager.Select(ctx, singleQuestionID, "B")
	require.NoError(t, err)

	result, err := h.manager.Submit(ctx)
	require.NoError(t, err)
	require.Zero(t, result.ServerAttemptID)
	require.Empty(t, h.remote.submitted())

	_, ok := h.store.FindByQuiz(ctx, 7)
	require.False(t, ok)
	require.Equal(t, StateSubmitted, h.manager.Snapshot().State)
}

func TestSubmitContinuesPastIndividualFailures(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	h.remote.failOnQuestion = map[int64]bool{singleQuestionID: true}

	_, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)
	_, err = h.manager.Select(ctx, singleQuestionID, "B")
	require.NoError(t, err)
	_, err = h.manager.Select(ctx, multipleQuestionID, "A")
	require.NoError(t, err)

	result, err := h.manager.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Attempted)
	require.Equal(t, 1, result.Submitted)
	require.Equal(t, 1, result.Failed)

	_, ok := h.store.FindByQuiz(ctx, 7)
	require.False(t, ok)
}

func TestSubmitSkipsSyntheticOptions(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	h.remote.quiz.Questions = []quiz.Question{{
		ID:      5,
		Content: "Legacy",
		Kind:    quiz.KindSingleChoice,
		Points:  1,
		Options: []quiz.Option{{ID: 0, Value: "A", Synthetic: true}},
	}}

	_, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)
	_, err = h.manager.Select(ctx, 5, "A")
	require.NoError(t, err)

	result, err := h.manager.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, result.Attempted)
	require.Equal(t, 1, result.Skipped)
	require.Empty(t, h.remote.submitted())
}

func TestSelectSubmitsOpportunisticallyWhenLinked(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	h.store.Save(ctx, attemptstore.LocalAttempt{
		Token:           "local_linked",
		QuizID:          7,
		Student:         quiz.StudentIdentity{Name: "Lan", DateOfBirth: "2010-01-02"},
		StartAt:         h.clock(),
		Answers:         map[int64]string{},
		ServerAttemptID: 77,
	})
	_, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)

	_, err = h.manager.Select(ctx, multipleQuestionID, "A")
	require.NoError(t, err)
	// toggling off does not submit
	_, err = h.manager.Select(ctx, multipleQuestionID, "A")
	require.NoError(t, err)
	h.manager.inflight.Wait()

	require.Equal(t, []gateway.SubmitAnswerRequest{
		{AttemptID: 77, QuestionID: multipleQuestionID, SelectedOptionID: 21},
	}, h.remote.submitted())
	require.Empty(t, h.remote.starts)
}

func TestRetakeAfterSubmitStartsFresh(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	first, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)
	_, err = h.manager.Select(ctx, singleQuestionID, "B")
	require.NoError(t, err)
	_, err = h.manager.Submit(ctx)
	require.NoError(t, err)

	_, err = h.manager.Select(ctx, singleQuestionID, "A")
	require.ErrorIs(t, err, ErrNotActive)
	_, err = h.manager.Submit(ctx)
	require.ErrorIs(t, err, ErrNotActive)

	second, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, ResumeNew, second.Resume)
	require.NotEqual(t, first.AttemptToken, second.AttemptToken)
	require.Empty(t, second.Answers)
}

func TestReviewAfterSubmit(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	_, _, err := h.manager.Review()
	require.ErrorIs(t, err, ErrNotSubmitted)

	_, err = h.manager.Load(ctx, 7)
	require.NoError(t, err)
	_, err = h.manager.Select(ctx, singleQuestionID, "A")
	require.NoError(t, err)
	_, _, err = h.manager.Review()
	require.ErrorIs(t, err, ErrNotSubmitted)

	_, err = h.manager.Submit(ctx)
	require.NoError(t, err)

	result, items, err := h.manager.Review()
	require.NoError(t, err)
	require.Equal(t, 1, result.Submitted)
	require.Len(t, items, 2)
	require.Equal(t, "A", items[0].Answer)
	require.Equal(t, "Venus", items[0].Selected[0].Label)
	require.Equal(t, "Mercury", items[0].Correct[0].Label)
	require.Equal(t, "Mercury orbits closest.", items[0].Explanation)
	require.Empty(t, items[1].Selected)
	require.Len(t, items[1].Correct, 2)
}

func commaValueQuiz() []quiz.Question {
	return []quiz.Question{{
		ID:      9,
		Content: "Capital of France?",
		Kind:    quiz.KindSingleChoice,
		Points:  1,
		Options: []quiz.Option{
			{ID: 91, Label: "Paris", Value: "Paris, France", IsCorrect: true},
			{ID: 92, Label: "Rome", Value: "Rome, Italy"},
		},
	}}
}

func TestSingleChoiceTokenWithCommaIsSubmittedWhole(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	h.remote.quiz.Questions = commaValueQuiz()

	_, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)
	next, err := h.manager.Select(ctx, 9, "Paris, France")
	require.NoError(t, err)
	require.Equal(t, "Paris, France", next)

	result, err := h.manager.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Attempted)
	require.Equal(t, 1, result.Submitted)
	require.Zero(t, result.Skipped)
	require.Equal(t, []gateway.SubmitAnswerRequest{
		{AttemptID: result.ServerAttemptID, QuestionID: 9, SelectedOptionID: 91},
	}, h.remote.submitted())

	_, items, err := h.manager.Review()
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Len(t, items[0].Selected, 1)
	require.Equal(t, int64(91), items[0].Selected[0].ID)
}

func TestSingleChoiceTokenWithCommaSubmitsOpportunistically(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	h.remote.quiz.Questions = commaValueQuiz()
	h.store.Save(ctx, attemptstore.LocalAttempt{
		Token:           "local_linked",
		QuizID:          7,
		Student:         quiz.StudentIdentity{Name: "Lan", DateOfBirth: "2010-01-02"},
		StartAt:         h.clock(),
		Answers:         map[int64]string{},
		ServerAttemptID: 77,
	})

	_, err := h.manager.Load(ctx, 7)
	require.NoError(t, err)
	_, err = h.manager.Select(ctx, 9, "Rome, Italy")
	require.NoError(t, err)
	h.manager.inflight.Wait()

	require.Equal(t, []gateway.SubmitAnswerRequest{
		{AttemptID: 77, QuestionID: 9, SelectedOptionID: 92},
	}, h.remote.submitted())
}
