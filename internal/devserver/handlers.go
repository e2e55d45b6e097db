package devserver

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	defaultListLimit    = 10
	defaultAnswersLimit = 25
	maxPageLimit        = 100
)

type API struct {
	store         *Store
	omitQuestions bool
	log           *slog.Logger
}

type Options struct {
	// OmitQuestions leaves questions out of GET /quizzes/{id}; clients then
	// fetch them from /quiz/{id}/questions.
	OmitQuestions bool
	Logger        *slog.Logger
}

func NewAPI(store *Store, opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if store == nil {
		store = NewStore(DefaultQuizzes(), nil)
	}
	return &API{store: store, omitQuestions: opts.OmitQuestions, log: logger}
}

func toQuizResponse(quiz Quiz, withQuestions bool) quizResponse {
	response := quizResponse{
		ID:                quiz.ID,
		Title:             quiz.Title,
		Description:       quiz.Description,
		Status:            quiz.Status,
		TimeLimit:         quiz.TimeLimit,
		NumberOfQuestions: len(quiz.Questions),
	}
	if withQuestions {
		response.Questions = quiz.Questions
	}
	return response
}

func (a *API) HandleListQuizzes(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePage(r, defaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	quizzes := a.store.ListQuizzes(r.URL.Query().Get("keyword"))
	items := make([]quizResponse, 0, len(quizzes))
	for _, quiz := range quizzes {
		items = append(items, toQuizResponse(quiz, false))
	}
	writePage(w, "quizzes fetched", items, page, limit)
}

func (a *API) HandleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	quiz, err := a.store.Quiz(quizID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "quiz fetched", toQuizResponse(quiz, !a.omitQuestions))
}

func (a *API) HandleQuizQuestions(w http.ResponseWriter, r *http.Request) {
	quizID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	quiz, err := a.store.Quiz(quizID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	questions := quiz.Questions
	if questions == nil {
		questions = []Question{}
	}
	writeSuccess(w, http.StatusOK, "questions fetched", questions)
}

func (a *API) HandleStartAttempt(w http.ResponseWriter, r *http.Request) {
	var request startAttemptRequest
	if err := decodeBody(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	request.StudentName = strings.TrimSpace(request.StudentName)
	request.DateOfBirth = strings.TrimSpace(request.DateOfBirth)
	if err := validate.Struct(request); err != nil {
		writeValidationError(w, err)
		return
	}

	attempt, err := a.store.StartAttempt(request.QuizID, request.StudentName, request.DateOfBirth, request.ClassName)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	a.log.Info("attempt started", "attempt_id", attempt.ID, "quiz_id", attempt.QuizID, "student", attempt.StudentName)
	writeSuccess(w, http.StatusCreated, "attempt started", attempt)
}

func (a *API) HandleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var request submitAnswerRequest
	if err := decodeBody(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(request); err != nil {
		writeValidationError(w, err)
		return
	}

	answer, created, err := a.store.SubmitAnswer(request.AttemptID, request.QuestionID, request.SelectedOptionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !created {
		writeSuccess(w, http.StatusOK, "answer already recorded", answer)
		return
	}
	a.log.Debug("answer recorded",
		"attempt_id", answer.AttemptID,
		"question_id", answer.QuestionID,
		"option_id", answer.SelectedOptionID,
		"correct", answer.IsCorrect,
	)
	writeSuccess(w, http.StatusCreated, "answer recorded", answer)
}

func (a *API) HandleAttemptsByQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, limit, err := parsePage(r, defaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attempts, err := a.store.AttemptsByQuiz(quizID, r.URL.Query().Get("keyword"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writePage(w, "attempts fetched", attempts, page, limit)
}

func (a *API) HandleGetAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attempt, err := a.store.Attempt(attemptID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "attempt fetched", attempt)
}

func (a *API) HandleAnswersByAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, limit, err := parsePage(r, defaultAnswersLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	answers, err := a.store.Answers(attemptID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writePage(w, "answers fetched", answers, page, limit)
}
