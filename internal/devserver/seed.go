package devserver

import (
	"encoding/json"
	"fmt"
	"html"
	"math/rand"
	"os"
	"strings"

	"quiz-taker/internal/opentdb"
)

// The seed layout doubles as the wire layout: snake_case fields and the legacy
// is_correct flag, as older backends served them.
type Option struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	IsCorrect bool   `json:"is_correct"`
}

type Question struct {
	ID          int64    `json:"id"`
	Question    string   `json:"question"`
	Type        string   `json:"type"`
	Points      int      `json:"points"`
	Order       int      `json:"order"`
	Explanation string   `json:"explanation,omitempty"`
	Options     []Option `json:"options"`
}

type Quiz struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	TimeLimit   int        `json:"time_limit"`
	Questions   []Question `json:"questions"`
}

func (q Quiz) question(id int64) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

func (q Question) option(id int64) (Option, bool) {
	for _, option := range q.Options {
		if option.ID == id {
			return option, true
		}
	}
	return Option{}, false
}

// LoadSeedFile reads a JSON array of quizzes.
func LoadSeedFile(path string) ([]Quiz, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var quizzes []Quiz
	if err := json.Unmarshal(raw, &quizzes); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return quizzes, nil
}

// FromTrivia turns OpenTDB questions into one quiz. Question and option ids
// are derived from quizID so several trivia quizzes never collide.
func FromTrivia(quizID int64, title string, timeLimit int, raw []opentdb.RawQuestion, rng *rand.Rand) Quiz {
	if rng == nil {
		rng = rand.New(rand.NewSource(quizID))
	}

	built := Quiz{
		ID:        quizID,
		Title:     title,
		Status:    "PUBLISHED",
		TimeLimit: timeLimit,
		Questions: make([]Question, 0, len(raw)),
	}
	for index, item := range raw {
		questionID := quizID*1000 + int64(index+1)
		question := Question{
			ID:       questionID,
			Question: html.UnescapeString(item.Question),
			Type:     "SINGLE_CHOICE",
			Points:   difficultyPoints(item.Difficulty),
			Order:    index + 1,
		}
		if strings.TrimSpace(item.Category) != "" {
			question.Explanation = "Category: " + html.UnescapeString(item.Category)
		}

		options := make([]Option, 0, len(item.IncorrectAnswers)+1)
		options = append(options, Option{Content: html.UnescapeString(item.CorrectAnswer), IsCorrect: true})
		for _, incorrect := range item.IncorrectAnswers {
			options = append(options, Option{Content: html.UnescapeString(incorrect)})
		}

		if item.Type == opentdb.TypeBoolean {
			question.Type = "TRUE_FALSE"
			// True first, False second.
			if len(options) == 2 && options[0].Content != "True" {
				options[0], options[1] = options[1], options[0]
			}
		} else {
			rng.Shuffle(len(options), func(i, j int) {
				options[i], options[j] = options[j], options[i]
			})
		}
		for optionIndex := range options {
			options[optionIndex].ID = questionID*10 + int64(optionIndex+1)
		}
		question.Options = options
		built.Questions = append(built.Questions, question)
	}
	return built
}

func difficultyPoints(difficulty string) int {
	switch strings.ToLower(difficulty) {
	case "hard":
		return 3
	case "medium":
		return 2
	default:
		return 1
	}
}

// DefaultQuizzes is the built-in catalogue used when no seed is given.
func DefaultQuizzes() []Quiz {
	return []Quiz{
		{
			ID:          1,
			Title:       "Solar System Basics",
			Description: "Planets, moons and the sun.",
			Status:      "PUBLISHED",
			TimeLimit:   10,
			Questions: []Question{
				{
					ID:          101,
					Question:    "Which planet is closest to the sun?",
					Type:        "SINGLE_CHOICE",
					Points:      1,
					Order:       1,
					Explanation: "Mercury orbits at about 58 million km from the sun.",
					Options: []Option{
						{ID: 1011, Content: "Venus"},
						{ID: 1012, Content: "Mercury", IsCorrect: true},
						{ID: 1013, Content: "Mars"},
						{ID: 1014, Content: "Earth"},
					},
				},
				{
					ID:          102,
					Question:    "Which of these are gas giants?",
					Type:        "MULTIPLE_CHOICE",
					Points:      2,
					Order:       2,
					Explanation: "Jupiter and Saturn are gas giants; Uranus and Neptune are ice giants.",
					Options: []Option{
						{ID: 1021, Content: "Jupiter", IsCorrect: true},
						{ID: 1022, Content: "Saturn", IsCorrect: true},
						{ID: 1023, Content: "Mars"},
						{ID: 1024, Content: "Mercury"},
					},
				},
				{
					ID:       103,
					Question: "The Moon produces its own light.",
					Type:     "TRUE_FALSE",
					Points:   1,
					Order:    3,
					Options: []Option{
						{ID: 1031, Content: "True"},
						{ID: 1032, Content: "False", IsCorrect: true},
					},
				},
			},
		},
		{
			ID:          2,
			Title:       "Fractions",
			Description: "Quick arithmetic warm-up.",
			Status:      "PUBLISHED",
			TimeLimit:   5,
			Questions: []Question{
				{
					ID:       201,
					Question: "What is half of 8?",
					Type:     "SINGLE_CHOICE",
					Points:   1,
					Order:    1,
					Options: []Option{
						{ID: 2011, Content: "2"},
						{ID: 2012, Content: "4", IsCorrect: true},
						{ID: 2013, Content: "6"},
					},
				},
			},
		},
	}
}
