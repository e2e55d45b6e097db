package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"quiz-taker/internal/quiz"
)

type StartAttemptRequest struct {
	QuizID      int64  `json:"quizId"`
	StudentName string `json:"studentName"`
	DateOfBirth string `json:"dateOfBirth"`
	ClassName   string `json:"className,omitempty"`
}

type SubmitAnswerRequest struct {
	AttemptID        int64 `json:"attemptId"`
	QuestionID       int64 `json:"questionId"`
	SelectedOptionID int64 `json:"selectedOptionId"`
}

func requireID(name string, id int64) error {
	if id <= 0 {
		return errors.New(name + " is required")
	}
	return nil
}

func (c *HTTPClient) GetQuiz(ctx context.Context, quizID int64) (quiz.Quiz, error) {
	if err := requireID("quiz id", quizID); err != nil {
		return quiz.Quiz{}, err
	}

	payload, err := c.doJSON(ctx, http.MethodGet, "/quizzes/"+strconv.FormatInt(quizID, 10), nil)
	if err != nil {
		return quiz.Quiz{}, err
	}
	loaded := quiz.NormalizeQuiz(payload)
	if loaded.ID == 0 {
		loaded.ID = quizID
	}
	return loaded, nil
}

// ListQuestions serves quizzes whose payload came without questions.
func (c *HTTPClient) ListQuestions(ctx context.Context, quizID int64) ([]quiz.Question, error) {
	if err := requireID("quiz id", quizID); err != nil {
		return nil, err
	}

	payload, err := c.doJSON(ctx, http.MethodGet, "/quiz/"+strconv.FormatInt(quizID, 10)+"/questions", nil)
	if err != nil {
		return nil, err
	}
	return quiz.NormalizeQuestions(payload), nil
}

func (c *HTTPClient) ListQuizzes(ctx context.Context, params PageParams) (quiz.Page[quiz.Quiz], error) {
	payload, err := c.doJSON(ctx, http.MethodGet, "/quizzes"+params.encode(), nil)
	if err != nil {
		return quiz.Page[quiz.Quiz]{}, err
	}
	return quiz.NormalizePage(payload, quiz.NormalizeQuiz), nil
}

func (c *HTTPClient) StartAttempt(ctx context.Context, request StartAttemptRequest) (quiz.Attempt, error) {
	if err := requireID("quiz id", request.QuizID); err != nil {
		return quiz.Attempt{}, err
	}

	payload, err := c.doJSON(ctx, http.MethodPost, "/quiz_attempts", request)
	if err != nil {
		return quiz.Attempt{}, err
	}
	attempt := quiz.NormalizeAttempt(payload)
	if attempt.ID == 0 {
		return quiz.Attempt{}, errors.New("attempt response carried no id")
	}
	return attempt, nil
}

func (c *HTTPClient) SubmitAnswer(ctx context.Context, request SubmitAnswerRequest) (quiz.StudentAnswer, error) {
	if err := requireID("attempt id", request.AttemptID); err != nil {
		return quiz.StudentAnswer{}, err
	}

	payload, err := c.doJSON(ctx, http.MethodPost, "/submit_answer", request)
	if err != nil {
		return quiz.StudentAnswer{}, err
	}
	return quiz.NormalizeAnswer(payload), nil
}

func (c *HTTPClient) ListAttemptsByQuiz(ctx context.Context, quizID int64, params PageParams) (quiz.Page[quiz.Attempt], error) {
	if err := requireID("quiz id", quizID); err != nil {
		return quiz.Page[quiz.Attempt]{}, err
	}

	path := "/quiz_attempts_by_quiz_id/" + strconv.FormatInt(quizID, 10) + params.encode()
	payload, err := c.doJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return quiz.Page[quiz.Attempt]{}, err
	}
	return quiz.NormalizePage(payload, quiz.NormalizeAttempt), nil
}

func (c *HTTPClient) GetAttempt(ctx context.Context, attemptID int64) (quiz.Attempt, error) {
	if err := requireID("attempt id", attemptID); err != nil {
		return quiz.Attempt{}, err
	}

	payload, err := c.doJSON(ctx, http.MethodGet, "/quiz_attempts/"+strconv.FormatInt(attemptID, 10), nil)
	if err != nil {
		return quiz.Attempt{}, err
	}
	return quiz.NormalizeAttempt(payload), nil
}

func (c *HTTPClient) ListAnswersByAttempt(ctx context.Context, attemptID int64, params PageParams) (quiz.Page[quiz.StudentAnswer], error) {
	if err := requireID("attempt id", attemptID); err != nil {
		return quiz.Page[quiz.StudentAnswer]{}, err
	}

	// keyword is not supported on this endpoint
	params.Keyword = ""
	path := "/student_answers/" + strconv.FormatInt(attemptID, 10) + params.encode()
	payload, err := c.doJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return quiz.Page[quiz.StudentAnswer]{}, err
	}
	return quiz.NormalizePage(payload, quiz.NormalizeAnswer), nil
}
