package quiz

import (
	"strconv"
	"time"
)

type Kind string

const (
	KindSingleChoice   Kind = "SINGLE_CHOICE"
	KindMultipleChoice Kind = "MULTIPLE_CHOICE"
	KindTrueFalse      Kind = "TRUE_FALSE"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptExpired    AttemptStatus = "expired"
)

// DefaultTimeLimit applies when a quiz payload carries no usable duration.
const DefaultTimeLimit = 60

type Option struct {
	ID        int64
	Label     string
	Value     string
	IsCorrect bool
	Order     int
	// Synthetic is set when the payload had no option id and ID holds the
	// option's position instead. Such options cannot be submitted.
	Synthetic bool
}

type Question struct {
	ID          int64
	Content     string
	Kind        Kind
	Options     []Option
	Points      int
	Order       int
	Explanation string
}

// OptionByValue resolves an answer token to the option carrying it.
func (q Question) OptionByValue(value string) (Option, bool) {
	for _, option := range q.Options {
		if option.Value == value {
			return option, true
		}
	}
	return Option{}, false
}

func (q Question) IsMultiple() bool {
	return q.Kind == KindMultipleChoice
}

type Quiz struct {
	ID                int64
	Title             string
	Description       string
	Slug              string
	CoverImage        string
	Status            Status
	TimeLimit         int // minutes
	NumberOfQuestions int
	Questions         []Question
}

func (q Quiz) Duration() time.Duration {
	minutes := q.TimeLimit
	if minutes <= 0 {
		minutes = DefaultTimeLimit
	}
	return time.Duration(minutes) * time.Minute
}

func (q Quiz) Question(id int64) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

func (q Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// StudentIdentity is entered once per session and never authenticated.
type StudentIdentity struct {
	Name        string `json:"name" validate:"required,max=255"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	ClassName   string `json:"className,omitempty" validate:"omitempty,max=64"`
}

type Attempt struct {
	ID          int64
	QuizID      int64
	StudentID   int64
	StudentName string
	DateOfBirth string
	ClassName   string
	StartedAt   time.Time
	FinishedAt  time.Time
	Score       *float64
	Status      AttemptStatus
}

type StudentAnswer struct {
	ID               int64
	AttemptID        int64
	QuestionID       int64
	SelectedOptionID int64
	SelectedOption   string
	IsCorrect        *bool
	TimeSpent        int
	CreatedAt        time.Time
}

type PageMeta struct {
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

type Page[T any] struct {
	Items []T
	Meta  PageMeta
}

func fallbackLabel(prefix string, id int64) string {
	return prefix + " " + strconv.FormatInt(id, 10)
}
