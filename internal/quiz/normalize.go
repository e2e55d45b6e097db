package quiz

import (
	"math"
	"sort"
	"strings"
)

// Field resolution tables. Every payload coming from the backend passes
// through these once; nothing past this file reads raw field names.
var (
	quizFields = fieldTable{
		"id":          {"id", "quizId", "quiz_id"},
		"title":       {"title", "name"},
		"description": {"description"},
		"slug":        {"slug"},
		"coverImage":  {"coverImage", "cover_image"},
		"status":      {"status"},
		"timeLimit":   {"duration", "timeLimit", "time_limit"},
		"count":       {"number_of_questions", "numberOfQuestions", "questionCount"},
		"questions":   {"questions"},
	}

	questionFields = fieldTable{
		"id":          {"id", "questionId", "question_id"},
		"content":     {"content", "question"},
		"kind":        {"type", "kind"},
		"points":      {"points", "point"},
		"order":       {"order", "position"},
		"explanation": {"explanation"},
		"options":     {"options", "answers"},
	}

	optionFields = fieldTable{
		"id":        {"id", "optionId", "option_id"},
		"label":     {"content", "label", "value"},
		"value":     {"value"},
		"isCorrect": {"isCorrect", "is_correct"},
		"order":     {"order", "position"},
	}

	attemptFields = fieldTable{
		"id":          {"id", "attemptId", "attempt_id"},
		"quizId":      {"quizId", "quiz_id", "quiz.id"},
		"studentId":   {"studentId", "student_id", "student.id"},
		"name":        {"student.fullName", "studentName", "student_name"},
		"dateOfBirth": {"student.dateOfBirth", "dateOfBirth", "studentDateOfBirth", "student_date_of_birth"},
		"className":   {"student.className", "studentClassName", "className", "class_name"},
		"startedAt":   {"startedAt", "start_at", "started_at"},
		"finishedAt":  {"finishedAt", "end_at", "finished_at"},
		"score":       {"score"},
		"status":      {"status"},
	}

	answerFields = fieldTable{
		"id":               {"id"},
		"attemptId":        {"attemptId", "attempt_id"},
		"questionId":       {"questionId", "question_id"},
		"selectedOptionId": {"selectedOptionId", "selected_option_id"},
		"selectedOption":   {"selected_option", "selectedOption"},
		"isCorrect":        {"is_correct", "isCorrect"},
		"timeSpent":        {"time_spent", "timeSpent"},
		"createdAt":        {"createdAt", "created_at"},
	}

	pageFields = fieldTable{
		"total":      {"meta.total", "total"},
		"page":       {"meta.page", "page"},
		"limit":      {"meta.limit", "limit"},
		"totalPages": {"meta.totalPages", "meta.total_pages", "totalPages"},
	}
)

func NormalizeQuiz(payload any) Quiz {
	obj := asObject(payload)
	id, _ := quizFields.integer(obj, "id")
	title, _ := quizFields.str(obj, "title")
	description, _ := quizFields.str(obj, "description")
	slug, _ := quizFields.str(obj, "slug")
	cover, _ := quizFields.str(obj, "coverImage")
	status, _ := quizFields.str(obj, "status")
	timeLimit, _ := quizFields.positiveInteger(obj, "timeLimit")

	var questions []Question
	if raw, ok := quizFields.raw(obj, "questions"); ok {
		questions = NormalizeQuestions(raw)
	} else {
		questions = []Question{}
	}

	count, ok := quizFields.integer(obj, "count")
	if !ok {
		count = int64(len(questions))
	}

	return Quiz{
		ID:                id,
		Title:             title,
		Description:       description,
		Slug:              slug,
		CoverImage:        cover,
		Status:            Status(strings.ToUpper(strings.TrimSpace(status))),
		TimeLimit:         int(timeLimit),
		NumberOfQuestions: int(count),
		Questions:         questions,
	}
}

func NormalizeQuizzes(payload any) []Quiz {
	items := EnsureList(payload)
	quizzes := make([]Quiz, 0, len(items))
	for _, item := range items {
		quizzes = append(quizzes, NormalizeQuiz(item))
	}
	return quizzes
}

// NormalizeQuestions keeps payload order, then stable-sorts by the explicit
// order field when one is present.
func NormalizeQuestions(payload any) []Question {
	items := EnsureList(payload)
	questions := make([]Question, 0, len(items))
	for _, item := range items {
		questions = append(questions, NormalizeQuestion(item))
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Order < questions[j].Order
	})
	return questions
}

func NormalizeQuestion(payload any) Question {
	obj := asObject(payload)
	id, _ := questionFields.integer(obj, "id")

	content, ok := questionFields.str(obj, "content")
	if !ok {
		content = fallbackLabel("Question", id)
	}

	points, ok := questionFields.integer(obj, "points")
	if !ok || points <= 0 {
		points = 1
	}
	order, _ := questionFields.integer(obj, "order")
	kind, _ := questionFields.str(obj, "kind")
	explanation, _ := questionFields.str(obj, "explanation")

	var options []Option
	if raw, ok := questionFields.raw(obj, "options"); ok {
		options = NormalizeOptions(raw)
	} else {
		options = []Option{}
	}

	return Question{
		ID:          id,
		Content:     content,
		Kind:        ParseKind(kind),
		Options:     options,
		Points:      int(points),
		Order:       int(order),
		Explanation: explanation,
	}
}

func NormalizeOptions(payload any) []Option {
	items := EnsureList(payload)
	options := make([]Option, 0, len(items))
	for index, item := range items {
		options = append(options, NormalizeOption(item, index))
	}
	return options
}

// NormalizeOption resolves one option; index is its position in the list and
// stands in for a missing id and value token.
func NormalizeOption(payload any, index int) Option {
	obj := asObject(payload)

	option := Option{Order: index}
	if id, ok := optionFields.integer(obj, "id"); ok && id != 0 {
		option.ID = id
	} else {
		option.ID = int64(index)
		option.Synthetic = true
	}

	if value, ok := optionFields.str(obj, "value"); ok {
		option.Value = value
	} else {
		option.Value = OptionLetter(index)
	}
	if label, ok := optionFields.str(obj, "label"); ok {
		option.Label = label
	} else {
		option.Label = option.Value
	}
	option.IsCorrect, _ = optionFields.flag(obj, "isCorrect")
	if order, ok := optionFields.integer(obj, "order"); ok {
		option.Order = int(order)
	}
	return option
}

func NormalizeAttempt(payload any) Attempt {
	obj := asObject(payload)
	attempt := Attempt{}
	attempt.ID, _ = attemptFields.integer(obj, "id")
	attempt.QuizID, _ = attemptFields.integer(obj, "quizId")
	attempt.StudentID, _ = attemptFields.integer(obj, "studentId")

	if name, ok := attemptFields.str(obj, "name"); ok {
		attempt.StudentName = name
	} else if attempt.StudentID != 0 {
		attempt.StudentName = fallbackLabel("Student", attempt.StudentID)
	}
	attempt.DateOfBirth, _ = attemptFields.str(obj, "dateOfBirth")
	attempt.ClassName, _ = attemptFields.str(obj, "className")
	attempt.StartedAt, _ = attemptFields.timestamp(obj, "startedAt")
	attempt.FinishedAt, _ = attemptFields.timestamp(obj, "finishedAt")
	if score, ok := attemptFields.number(obj, "score"); ok {
		attempt.Score = &score
	}

	status, _ := attemptFields.str(obj, "status")
	switch AttemptStatus(strings.ToLower(strings.TrimSpace(status))) {
	case AttemptCompleted:
		attempt.Status = AttemptCompleted
	case AttemptExpired:
		attempt.Status = AttemptExpired
	case AttemptInProgress:
		attempt.Status = AttemptInProgress
	default:
		if attempt.FinishedAt.IsZero() {
			attempt.Status = AttemptInProgress
		} else {
			attempt.Status = AttemptCompleted
		}
	}
	return attempt
}

func NormalizeAnswer(payload any) StudentAnswer {
	obj := asObject(payload)
	answer := StudentAnswer{}
	answer.ID, _ = answerFields.integer(obj, "id")
	answer.AttemptID, _ = answerFields.integer(obj, "attemptId")
	answer.QuestionID, _ = answerFields.integer(obj, "questionId")
	answer.SelectedOptionID, _ = answerFields.integer(obj, "selectedOptionId")
	answer.SelectedOption, _ = answerFields.str(obj, "selectedOption")
	if correct, ok := answerFields.flag(obj, "isCorrect"); ok {
		answer.IsCorrect = &correct
	}
	if spent, ok := answerFields.integer(obj, "timeSpent"); ok {
		answer.TimeSpent = int(spent)
	}
	answer.CreatedAt, _ = answerFields.timestamp(obj, "createdAt")
	return answer
}

// NormalizePage reads a {data, meta} envelope. A bare list is accepted as a
// single page holding everything.
func NormalizePage[T any](payload any, item func(any) T) Page[T] {
	raw := EnsureList(payload)
	items := make([]T, 0, len(raw))
	for _, entry := range raw {
		items = append(items, item(entry))
	}

	obj := asObject(payload)
	meta := PageMeta{Total: len(items), Page: 1, Limit: len(items)}
	if total, ok := pageFields.integer(obj, "total"); ok {
		meta.Total = int(total)
	}
	if page, ok := pageFields.integer(obj, "page"); ok && page > 0 {
		meta.Page = int(page)
	}
	if limit, ok := pageFields.integer(obj, "limit"); ok && limit > 0 {
		meta.Limit = int(limit)
	}
	if totalPages, ok := pageFields.integer(obj, "totalPages"); ok {
		meta.TotalPages = int(totalPages)
	} else if meta.Limit > 0 {
		meta.TotalPages = int(math.Ceil(float64(meta.Total) / float64(meta.Limit)))
	}
	if meta.TotalPages < 1 {
		meta.TotalPages = 1
	}

	return Page[T]{Items: items, Meta: meta}
}

func ParseKind(value string) Kind {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch normalized {
	case "MULTIPLE_CHOICE", "MULTIPLE", "MULTI_CHOICE", "CHECKBOX":
		return KindMultipleChoice
	case "TRUE_FALSE", "TRUEFALSE", "BOOLEAN":
		return KindTrueFalse
	default:
		return KindSingleChoice
	}
}

// OptionLetter returns A, B, ... Z, then AA, AB, ... for larger lists.
func OptionLetter(index int) string {
	if index < 0 {
		return ""
	}
	letters := ""
	for {
		letters = string(rune('A'+index%26)) + letters
		index = index/26 - 1
		if index < 0 {
			return letters
		}
	}
}
