package session

import (
	"time"

	"quiz-taker/internal/countdown"
	"quiz-taker/internal/quiz"
)

type Snapshot struct {
	State           State
	Resume          ResumeKind
	Quiz            quiz.Quiz
	Student         quiz.StudentIdentity
	AttemptToken    string
	ServerAttemptID int64
	StartAt         time.Time
	EndAt           time.Time
	Answers         map[int64]string
	Remaining       countdown.Remaining
	Answered        int
	TotalQuestions  int
	TotalPoints     int
	// ReadOnly is set once time has run out; answers can no longer change.
	ReadOnly bool
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snapshot := Snapshot{State: m.state}
	if m.state == StateUnloaded || m.state == StateLoading {
		snapshot.Remaining = countdown.Remaining{Idle: true}
		return snapshot
	}

	attempt := m.attempt.Clone()
	snapshot.Resume = m.resume
	snapshot.Quiz = m.current
	snapshot.Student = attempt.Student
	snapshot.AttemptToken = attempt.Token
	snapshot.ServerAttemptID = attempt.ServerAttemptID
	snapshot.StartAt = attempt.StartAt
	snapshot.EndAt = attempt.EndAt(m.current.Duration())
	snapshot.Answers = attempt.Answers
	snapshot.Remaining = m.clock.Remaining()
	snapshot.TotalQuestions = len(m.current.Questions)
	snapshot.TotalPoints = m.current.TotalPoints()
	snapshot.ReadOnly = m.state != StateActive || snapshot.Remaining.Expired
	for _, question := range m.current.Questions {
		if attempt.Answers[question.ID] != "" {
			snapshot.Answered++
		}
	}
	return snapshot
}

// ReviewItem pairs a question with what the student answered. Explanations
// and correctness are only handed out after submission.
type ReviewItem struct {
	Question    quiz.Question
	Answer      string
	Selected    []quiz.Option
	Correct     []quiz.Option
	Explanation string
}

func (m *Manager) Review() (Result, []ReviewItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateSubmitted {
		return Result{}, nil, ErrNotSubmitted
	}

	items := make([]ReviewItem, 0, len(m.current.Questions))
	for _, question := range m.current.Questions {
		answer := m.attempt.Answers[question.ID]
		item := ReviewItem{
			Question:    question,
			Answer:      answer,
			Explanation: question.Explanation,
		}
		for _, option := range question.Options {
			if question.Selected(answer, option.Value) {
				item.Selected = append(item.Selected, option)
			}
			if option.IsCorrect {
				item.Correct = append(item.Correct, option)
			}
		}
		items = append(items, item)
	}
	return m.result, items, nil
}
