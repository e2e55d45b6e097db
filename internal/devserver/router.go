package devserver

import (
	"net/http"
	"time"
)

const apiPrefix = "/api"

func NewRouter(store *Store, opts Options) http.Handler {
	api := NewAPI(store, opts)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+apiPrefix+"/quizzes", api.HandleListQuizzes)
	mux.HandleFunc("GET "+apiPrefix+"/quizzes/{id}", api.HandleGetQuiz)
	mux.HandleFunc("GET "+apiPrefix+"/quiz/{id}/questions", api.HandleQuizQuestions)
	mux.HandleFunc("POST "+apiPrefix+"/quiz_attempts", api.HandleStartAttempt)
	mux.HandleFunc("GET "+apiPrefix+"/quiz_attempts/{id}", api.HandleGetAttempt)
	mux.HandleFunc("GET "+apiPrefix+"/quiz_attempts_by_quiz_id/{id}", api.HandleAttemptsByQuiz)
	mux.HandleFunc("POST "+apiPrefix+"/submit_answer", api.HandleSubmitAnswer)
	mux.HandleFunc("GET "+apiPrefix+"/student_answers/{id}", api.HandleAnswersByAttempt)

	return api.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		a.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration", time.Since(started),
		)
	})
}
