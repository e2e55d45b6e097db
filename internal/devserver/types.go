package devserver

type quizResponse struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Status            string     `json:"status"`
	TimeLimit         int        `json:"time_limit"`
	NumberOfQuestions int        `json:"number_of_questions"`
	Questions         []Question `json:"questions,omitempty"`
}

type startAttemptRequest struct {
	QuizID      int64  `json:"quizId" validate:"required,gt=0"`
	StudentName string `json:"studentName" validate:"required,max=255"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	ClassName   string `json:"className" validate:"omitempty,max=64"`
}

type submitAnswerRequest struct {
	AttemptID        int64 `json:"attemptId" validate:"required,gt=0"`
	QuestionID       int64 `json:"questionId" validate:"required,gt=0"`
	SelectedOptionID int64 `json:"selectedOptionId" validate:"required,gt=0"`
}

// envelope is the {code, status, message, data} wrapper every response uses.
type envelope struct {
	Code    int               `json:"code"`
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Meta    *pageMeta         `json:"meta,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type pageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}
