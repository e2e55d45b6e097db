package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrQuestionNotInQuiz   = errors.New("question does not belong to the attempt's quiz")
	ErrOptionNotInQuestion = errors.New("option does not belong to the question")
)

const (
	statusInProgress = "in_progress"
	statusCompleted  = "completed"
	statusExpired    = "expired"
)

type Attempt struct {
	ID          int64      `json:"id"`
	QuizID      int64      `json:"quiz_id"`
	StudentName string     `json:"student_name"`
	DateOfBirth string     `json:"student_date_of_birth"`
	ClassName   string     `json:"class_name,omitempty"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       *time.Time `json:"end_at,omitempty"`
	Score       float64    `json:"score"`
	Status      string     `json:"status"`
}

type Answer struct {
	ID               int64     `json:"id"`
	AttemptID        int64     `json:"attempt_id"`
	QuestionID       int64     `json:"question_id"`
	SelectedOptionID int64     `json:"selected_option_id"`
	SelectedOption   string    `json:"selected_option"`
	IsCorrect        bool      `json:"is_correct"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store keeps quizzes, attempts and answers in memory. Attempt status is
// derived on read: completed once any answer exists, expired when the time
// limit passed without one, in progress otherwise.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	quizzes   map[int64]Quiz
	quizOrder []int64

	attempts      map[int64]Attempt
	attemptOrder  []int64
	answers       map[int64][]Answer
	nextAttemptID int64
	nextAnswerID  int64
}

func NewStore(quizzes []Quiz, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	store := &Store{
		now:      now,
		quizzes:  make(map[int64]Quiz),
		attempts: make(map[int64]Attempt),
		answers:  make(map[int64][]Answer),
	}
	for _, quiz := range quizzes {
		store.AddQuiz(quiz)
	}
	return store
}

// AddQuiz inserts or replaces a quiz.
func (s *Store) AddQuiz(quiz Quiz) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.quizzes[quiz.ID]; !exists {
		s.quizOrder = append(s.quizOrder, quiz.ID)
	}
	quiz.Questions = append([]Question(nil), quiz.Questions...)
	sort.SliceStable(quiz.Questions, func(i, j int) bool {
		return quiz.Questions[i].Order < quiz.Questions[j].Order
	})
	s.quizzes[quiz.ID] = quiz
}

func (s *Store) Quiz(id int64) (Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quiz, ok := s.quizzes[id]
	if !ok {
		return Quiz{}, ErrQuizNotFound
	}
	return quiz, nil
}

// ListQuizzes returns quizzes in insertion order, filtered by a
// case-insensitive title keyword.
func (s *Store) ListQuizzes(keyword string) []Quiz {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyword = strings.ToLower(strings.TrimSpace(keyword))
	quizzes := make([]Quiz, 0, len(s.quizOrder))
	for _, id := range s.quizOrder {
		quiz := s.quizzes[id]
		if keyword != "" && !strings.Contains(strings.ToLower(quiz.Title), keyword) {
			continue
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes
}

func (s *Store) StartAttempt(quizID int64, studentName, dateOfBirth, className string) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quizzes[quizID]; !ok {
		return Attempt{}, ErrQuizNotFound
	}

	s.nextAttemptID++
	attempt := Attempt{
		ID:          s.nextAttemptID,
		QuizID:      quizID,
		StudentName: strings.TrimSpace(studentName),
		DateOfBirth: strings.TrimSpace(dateOfBirth),
		ClassName:   strings.TrimSpace(className),
		StartAt:     s.now().UTC(),
	}
	s.attempts[attempt.ID] = attempt
	s.attemptOrder = append(s.attemptOrder, attempt.ID)
	return s.viewLocked(attempt), nil
}

// SubmitAnswer records one (attempt, question, option) triple. Submitting the
// same triple again returns the stored answer and created=false.
func (s *Store) SubmitAnswer(attemptID, questionID, optionID int64) (Answer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[attemptID]
	if !ok {
		return Answer{}, false, ErrAttemptNotFound
	}
	quiz := s.quizzes[attempt.QuizID]
	question, ok := quiz.question(questionID)
	if !ok {
		return Answer{}, false, ErrQuestionNotInQuiz
	}
	option, ok := question.option(optionID)
	if !ok {
		return Answer{}, false, ErrOptionNotInQuestion
	}

	for _, existing := range s.answers[attemptID] {
		if existing.QuestionID == questionID && existing.SelectedOptionID == optionID {
			return existing, false, nil
		}
	}

	s.nextAnswerID++
	answer := Answer{
		ID:               s.nextAnswerID,
		AttemptID:        attemptID,
		QuestionID:       questionID,
		SelectedOptionID: optionID,
		SelectedOption:   option.Content,
		IsCorrect:        option.IsCorrect,
		CreatedAt:        s.now().UTC(),
	}
	s.answers[attemptID] = append(s.answers[attemptID], answer)

	attempt.Score = scoreAttempt(quiz, s.answers[attemptID])
	s.attempts[attemptID] = attempt
	return answer, true, nil
}

// scoreAttempt awards a question's points when the selected options are
// exactly its correct options.
func scoreAttempt(quiz Quiz, answers []Answer) float64 {
	selected := make(map[int64]map[int64]struct{})
	for _, answer := range answers {
		if selected[answer.QuestionID] == nil {
			selected[answer.QuestionID] = make(map[int64]struct{})
		}
		selected[answer.QuestionID][answer.SelectedOptionID] = struct{}{}
	}

	score := 0.0
	for _, question := range quiz.Questions {
		picked := selected[question.ID]
		if len(picked) == 0 {
			continue
		}
		exact := true
		correctCount := 0
		for _, option := range question.Options {
			_, chosen := picked[option.ID]
			if option.IsCorrect {
				correctCount++
			}
			if chosen != option.IsCorrect {
				exact = false
				break
			}
		}
		if exact && correctCount > 0 {
			score += float64(question.Points)
		}
	}
	return score
}

func (s *Store) Attempt(id int64) (Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attempt, ok := s.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return s.viewLocked(attempt), nil
}

// AttemptsByQuiz lists newest attempts first, filtered by a case-insensitive
// keyword over student name and class.
func (s *Store) AttemptsByQuiz(quizID int64, keyword string) ([]Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.quizzes[quizID]; !ok {
		return nil, ErrQuizNotFound
	}

	keyword = strings.ToLower(strings.TrimSpace(keyword))
	attempts := make([]Attempt, 0)
	for i := len(s.attemptOrder) - 1; i >= 0; i-- {
		attempt := s.attempts[s.attemptOrder[i]]
		if attempt.QuizID != quizID {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(attempt.StudentName), keyword) &&
			!strings.Contains(strings.ToLower(attempt.ClassName), keyword) {
			continue
		}
		attempts = append(attempts, s.viewLocked(attempt))
	}
	return attempts, nil
}

func (s *Store) Answers(attemptID int64) ([]Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.attempts[attemptID]; !ok {
		return nil, ErrAttemptNotFound
	}
	answers := append([]Answer(nil), s.answers[attemptID]...)
	if answers == nil {
		answers = []Answer{}
	}
	return answers, nil
}

func (s *Store) viewLocked(attempt Attempt) Attempt {
	answers := s.answers[attempt.ID]
	if len(answers) > 0 {
		finished := answers[len(answers)-1].CreatedAt
		attempt.EndAt = &finished
		attempt.Status = statusCompleted
		return attempt
	}

	limit := s.quizzes[attempt.QuizID].TimeLimit
	if limit <= 0 {
		limit = 60
	}
	deadline := attempt.StartAt.Add(time.Duration(limit) * time.Minute)
	if !s.now().Before(deadline) {
		attempt.EndAt = &deadline
		attempt.Status = statusExpired
		return attempt
	}
	attempt.Status = statusInProgress
	return attempt
}
