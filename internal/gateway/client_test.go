package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestDoJSONReturnsServiceUnavailable(t *testing.T) {
	client := NewHTTPClient("http://example.test", &http.Client{
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("dial error")
		}),
	})

	_, err := client.doJSON(context.Background(), http.MethodGet, "/health", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable wrapper, got %v", err)
	}
}

func TestDoJSONReturnsAPIErrorMessageFromBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"message":"validation failed","errors":{"studentName":"required","dateOfBirth":"invalid"}}`)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, server.Client())
	_, err := client.doJSON(context.Background(), http.MethodGet, "/anything", nil)
	if err == nil {
		t.Fatalf("expected API error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T (%v)", err, err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status code = %d, want %d", apiErr.StatusCode, http.StatusUnprocessableEntity)
	}
	if apiErr.Message != "validation failed" {
		t.Fatalf("message = %q, want %q", apiErr.Message, "validation failed")
	}
	if len(apiErr.Errors) != 2 || apiErr.Errors[0] != "dateOfBirth: invalid" {
		t.Fatalf("errors = %v", apiErr.Errors)
	}
	if apiErr.Temporary() {
		t.Fatalf("422 should not be temporary")
	}
}

func TestDoJSONFallsBackToErrorFieldAndStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/legacy" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"bad request payload"}`)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, server.Client())

	_, err := client.doJSON(context.Background(), http.MethodGet, "/legacy", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "bad request payload" {
		t.Fatalf("unexpected error %v", err)
	}

	_, err = client.doJSON(context.Background(), http.MethodGet, "/down", nil)
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "503 Service Unavailable" {
		t.Fatalf("message = %q", apiErr.Message)
	}
	if !apiErr.Temporary() {
		t.Fatalf("503 should be temporary")
	}
}

func TestUnwrap(t *testing.T) {
	wrapped := map[string]any{"data": map[string]any{"id": "1"}, "status": "success"}
	if got, ok := unwrap(wrapped).(map[string]any); !ok || got["id"] != "1" {
		t.Fatalf("expected data to be unwrapped, got %v", unwrap(wrapped))
	}

	page := map[string]any{"data": []any{}, "meta": map[string]any{"total": 0}}
	if got, ok := unwrap(page).(map[string]any); !ok || got["meta"] == nil {
		t.Fatalf("expected paginated envelope to be kept, got %v", unwrap(page))
	}

	bare := []any{"a"}
	if got, ok := unwrap(bare).([]any); !ok || len(got) != 1 {
		t.Fatalf("expected bare list untouched, got %v", unwrap(bare))
	}
}

func TestGetQuizUnwrapsAndNormalizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/quizzes/7" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Fatalf("authorization = %q", r.Header.Get("Authorization"))
		}
		_, _ = io.WriteString(w, `{"status":"success","message":"ok","data":{
			"id":7,"title":"Fractions","time_limit":15,
			"questions":[{"id":3,"question":"Half of 4?","options":[
				{"id":30,"content":"2","is_correct":true},
				{"id":31,"content":"3"}
			]}]}}`)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/api/", server.Client(), WithAccessToken(" secret "))
	loaded, err := client.GetQuiz(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetQuiz failed: %v", err)
	}
	if loaded.ID != 7 || loaded.Title != "Fractions" || loaded.TimeLimit != 15 {
		t.Fatalf("unexpected quiz %+v", loaded)
	}
	if len(loaded.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(loaded.Questions))
	}
	question := loaded.Questions[0]
	if question.Content != "Half of 4?" || question.Points != 1 {
		t.Fatalf("unexpected question %+v", question)
	}
	if question.Options[0].Value != "A" || !question.Options[0].IsCorrect || question.Options[1].Label != "3" {
		t.Fatalf("unexpected options %+v", question.Options)
	}
}

func TestListQuestionsToleratesShapes(t *testing.T) {
	bodies := map[string]string{
		"/quiz/1/questions": `[{"id":1,"content":"a"}]`,
		"/quiz/2/questions": `{"data":[{"id":1,"content":"a"},{"id":2,"content":"b"}]}`,
		"/quiz/3/questions": `null`,
		"/quiz/4/questions": `{"data":{"unexpected":true}}`,
	}
	want := map[int64]int{1: 1, 2: 2, 3: 0, 4: 0}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, bodies[r.URL.Path])
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, server.Client())
	for quizID, count := range want {
		questions, err := client.ListQuestions(context.Background(), quizID)
		if err != nil {
			t.Fatalf("quiz %d: %v", quizID, err)
		}
		if len(questions) != count {
			t.Fatalf("quiz %d: questions = %d, want %d", quizID, len(questions), count)
		}
	}
}

func TestStartAttemptPostsStudentSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/quiz_attempts" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Fatalf("content type = %q", r.Header.Get("Content-Type"))
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["quizId"] != float64(5) || body["studentName"] != "Lan" || body["dateOfBirth"] != "2010-01-02" {
			t.Fatalf("unexpected body %v", body)
		}
		if _, ok := body["className"]; ok {
			t.Fatalf("empty className should be omitted: %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"data":{"id":91,"quiz_id":5,"student_name":"Lan","start_at":"2026-03-01T10:00:00Z"}}`)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, server.Client())
	attempt, err := client.StartAttempt(context.Background(), StartAttemptRequest{
		QuizID:      5,
		StudentName: "Lan",
		DateOfBirth: "2010-01-02",
	})
	if err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}
	if attempt.ID != 91 || attempt.QuizID != 5 || attempt.StudentName != "Lan" {
		t.Fatalf("unexpected attempt %+v", attempt)
	}
	if attempt.StartedAt.IsZero() {
		t.Fatalf("expected start time to be parsed")
	}
}

func TestStartAttemptRejectsResponseWithoutID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"data":{}}`)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, server.Client())
	if _, err := client.StartAttempt(context.Background(), StartAttemptRequest{QuizID: 1}); err == nil {
		t.Fatalf("expected error for attempt without id")
	}
}

func TestSubmitAnswerPostsTriple(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body SubmitAnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body != (SubmitAnswerRequest{AttemptID: 1, QuestionID: 2, SelectedOptionID: 3}) {
			t.Fatalf("unexpected body %+v", body)
		}
		_, _ = io.WriteString(w, `{"data":{"id":10,"attempt_id":1,"question_id":2,"selected_option_id":3,"is_correct":true}}`)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, server.Client())
	answer, err := client.SubmitAnswer(context.Background(), SubmitAnswerRequest{AttemptID: 1, QuestionID: 2, SelectedOptionID: 3})
	if err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	if answer.SelectedOptionID != 3 || answer.IsCorrect == nil || !*answer.IsCorrect {
		t.Fatalf("unexpected answer %+v", answer)
	}
}

func TestListAttemptsByQuizBuildsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quiz_attempts_by_quiz_id/4" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("page") != "2" || query.Get("limit") != "10" || query.Get("keyword") != "lan" {
			t.Fatalf("unexpected query %v", query)
		}
		_, _ = io.WriteString(w, `{"data":[{"id":1,"student":{"fullName":"Lan"}},{"id":2,"studentId":8}],
			"meta":{"total":12,"page":2,"limit":10}}`)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, server.Client())
	page, err := client.ListAttemptsByQuiz(context.Background(), 4, PageParams{Page: 2, Limit: 10, Keyword: " lan "})
	if err != nil {
		t.Fatalf("ListAttemptsByQuiz failed: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].StudentName != "Lan" || page.Items[1].StudentName != "Student 8" {
		t.Fatalf("unexpected items %+v", page.Items)
	}
	if page.Meta.Total != 12 || page.Meta.Page != 2 || page.Meta.TotalPages != 2 {
		t.Fatalf("unexpected meta %+v", page.Meta)
	}
}

func TestListAnswersByAttemptDropsKeyword(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("keyword") {
			t.Fatalf("keyword should not be sent: %v", r.URL.Query())
		}
		_, _ = io.WriteString(w, `{"status":"success","data":{"data":[{"id":1,"question_id":2,"selected_option_id":3}],"meta":{"total":1,"page":1,"limit":25}}}`)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, server.Client())
	page, err := client.ListAnswersByAttempt(context.Background(), 9, PageParams{Page: 1, Limit: 25, Keyword: "x"})
	if err != nil {
		t.Fatalf("ListAnswersByAttempt failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].QuestionID != 2 || page.Meta.Limit != 25 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestRequireIDsBeforeCallingOut(t *testing.T) {
	client := NewHTTPClient("http://example.test", &http.Client{
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			t.Fatalf("no request expected")
			return nil, nil
		}),
	})

	if _, err := client.GetQuiz(context.Background(), 0); err == nil {
		t.Fatalf("expected error for missing quiz id")
	}
	if _, err := client.SubmitAnswer(context.Background(), SubmitAnswerRequest{}); err == nil {
		t.Fatalf("expected error for missing attempt id")
	}
}
