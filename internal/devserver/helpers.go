package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, envelope{Code: statusCode, Status: "success", Message: message, Data: data})
}

func writePage[T any](w http.ResponseWriter, message string, items []T, page, limit int) {
	pageItems, meta := paginate(items, page, limit)
	writeJSON(w, http.StatusOK, envelope{
		Code:    http.StatusOK,
		Status:  "success",
		Message: message,
		Data:    pageItems,
		Meta:    &meta,
	})
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, envelope{Code: statusCode, Status: "error", Message: message})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		writeError(w, http.StatusBadRequest, "invalid input")
		return
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	writeJSON(w, http.StatusBadRequest, envelope{
		Code:    http.StatusBadRequest,
		Status:  "error",
		Message: "validation failed",
		Errors:  details,
	})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrQuizNotFound):
		writeError(w, http.StatusNotFound, "quiz not found")
	case errors.Is(err, ErrAttemptNotFound):
		writeError(w, http.StatusNotFound, "attempt not found")
	case errors.Is(err, ErrQuestionNotInQuiz), errors.Is(err, ErrOptionNotInQuestion):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "request failed")
	}
}

func parsePathID(r *http.Request, key string) (int64, error) {
	value := strings.TrimSpace(r.PathValue(key))
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return parsed, nil
}

func parseIntParam(r *http.Request, key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return parsed, nil
}

func parsePage(r *http.Request, defaultLimit int) (int, int, error) {
	page, err := parseIntParam(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err := parseIntParam(r, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit, nil
}

func paginate[T any](items []T, page, limit int) ([]T, pageMeta) {
	meta := pageMeta{Total: len(items), Page: page, Limit: limit}
	meta.TotalPages = (len(items) + limit - 1) / limit
	if meta.TotalPages < 1 {
		meta.TotalPages = 1
	}

	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}, meta
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], meta
}

func decodeBody(r *http.Request, target any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	return decoder.Decode(target)
}
