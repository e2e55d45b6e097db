package userclient

import (
	"context"
	"fmt"
	"time"

	"quiz-taker/internal/gateway"
	"quiz-taker/internal/quiz"
)

const timeLayout = "2006-01-02 15:04"

func (a *app) runQuizzes(ctx context.Context, page int, keyword string) error {
	result, err := a.backend.ListQuizzes(ctx, gateway.PageParams{Page: page, Limit: a.quizzesLimit, Keyword: keyword})
	if err != nil {
		return describeClientError(err, a.serverURL)
	}

	out := a.out
	if len(result.Items) == 0 {
		fmt.Fprintln(out, "No quizzes found.")
		return nil
	}

	fmt.Fprintf(out, "Quizzes (page %d/%d, %d total):\n", result.Meta.Page, result.Meta.TotalPages, result.Meta.Total)
	for _, item := range result.Items {
		count := item.NumberOfQuestions
		if count == 0 {
			count = len(item.Questions)
		}
		fmt.Fprintf(out, "  [%d] %s - %s, %d min\n",
			item.ID,
			item.Title,
			pluralize(count, "question"),
			int(item.Duration()/time.Minute),
		)
	}
	return nil
}

func (a *app) runAttempts(ctx context.Context, quizID int64, page int, keyword string) error {
	result, err := a.backend.ListAttemptsByQuiz(ctx, quizID, gateway.PageParams{Page: page, Limit: a.attemptsLimit, Keyword: keyword})
	if err != nil {
		return describeClientError(err, a.serverURL)
	}

	out := a.out
	if len(result.Items) == 0 {
		fmt.Fprintf(out, "No attempts for quiz %d.\n", quizID)
		return nil
	}

	fmt.Fprintf(out, "Attempts for quiz %d (page %d/%d, %d total):\n",
		quizID, result.Meta.Page, result.Meta.TotalPages, result.Meta.Total)
	for _, attempt := range result.Items {
		fmt.Fprintf(out, "  #%d %s", attempt.ID, attempt.StudentName)
		if attempt.DateOfBirth != "" {
			fmt.Fprintf(out, " (born %s)", attempt.DateOfBirth)
		}
		if attempt.ClassName != "" {
			fmt.Fprintf(out, " class %s", attempt.ClassName)
		}
		fmt.Fprintf(out, " score=%s status=%s", formatOptionalScore(attempt.Score), attempt.Status)
		if !attempt.StartedAt.IsZero() {
			fmt.Fprintf(out, " started=%s", attempt.StartedAt.Local().Format(timeLayout))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func (a *app) runAnswers(ctx context.Context, attemptID int64, page int) error {
	attempt, err := a.backend.GetAttempt(ctx, attemptID)
	if err != nil {
		return describeClientError(err, a.serverURL)
	}
	result, err := a.backend.ListAnswersByAttempt(ctx, attemptID, gateway.PageParams{Page: page, Limit: a.answersLimit})
	if err != nil {
		return describeClientError(err, a.serverURL)
	}
	reference := a.referenceQuiz(ctx, attempt.QuizID)

	out := a.out
	fmt.Fprintf(out, "Attempt #%d by %s on quiz %d: score=%s status=%s\n",
		attempt.ID, attempt.StudentName, attempt.QuizID, formatOptionalScore(attempt.Score), attempt.Status)
	if len(result.Items) == 0 {
		fmt.Fprintln(out, "No answers recorded.")
		return nil
	}

	fmt.Fprintf(out, "Answers (page %d/%d, %d total):\n", result.Meta.Page, result.Meta.TotalPages, result.Meta.Total)
	for _, answer := range result.Items {
		question, _ := reference.Question(answer.QuestionID)
		option, _ := optionByID(question, answer.SelectedOptionID)

		prompt := question.Content
		if prompt == "" {
			prompt = fmt.Sprintf("question %d", answer.QuestionID)
		}
		chosen := answer.SelectedOption
		if chosen == "" {
			chosen = option.Label
		}
		if chosen == "" {
			chosen = fmt.Sprintf("option %d", answer.SelectedOptionID)
		}

		verdict := "unknown"
		switch {
		case answer.IsCorrect != nil && *answer.IsCorrect:
			verdict = "correct"
		case answer.IsCorrect != nil:
			verdict = "incorrect"
		case option.ID != 0 && option.IsCorrect:
			verdict = "correct"
		case option.ID != 0:
			verdict = "incorrect"
		}
		fmt.Fprintf(out, "  %s: %s [%s]\n", prompt, chosen, verdict)
	}
	return nil
}

// referenceQuiz loads the quiz an attempt belongs to so answers can be shown
// against their questions. Failures only cost the question text.
func (a *app) referenceQuiz(ctx context.Context, quizID int64) quiz.Quiz {
	if quizID == 0 {
		return quiz.Quiz{}
	}
	loaded, err := a.backend.GetQuiz(ctx, quizID)
	if err != nil {
		a.log.Warn("quiz for answer review unavailable", "quiz_id", quizID, "error", err)
		return quiz.Quiz{}
	}
	if len(loaded.Questions) > 0 {
		return loaded
	}
	questions, err := a.backend.ListQuestions(ctx, quizID)
	if err != nil {
		a.log.Warn("questions for answer review unavailable", "quiz_id", quizID, "error", err)
		return loaded
	}
	loaded.Questions = questions
	return loaded
}

func optionByID(question quiz.Question, optionID int64) (quiz.Option, bool) {
	for _, option := range question.Options {
		if option.ID == optionID && !option.Synthetic {
			return option, true
		}
	}
	return quiz.Option{}, false
}
