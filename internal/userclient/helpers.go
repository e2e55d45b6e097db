package userclient

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"quiz-taker/internal/gateway"
	"quiz-taker/internal/quiz"
)

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  help")
	fmt.Fprintln(out, "  identity")
	fmt.Fprintln(out, "  whoami")
	fmt.Fprintln(out, "  quizzes [page] [keyword]")
	fmt.Fprintln(out, "  play <quiz_id>")
	fmt.Fprintln(out, "  attempts <quiz_id> [page] [keyword]")
	fmt.Fprintln(out, "  answers <attempt_id> [page]")
	fmt.Fprintln(out, "  exit")
}

func printPlayHelp(out io.Writer) {
	fmt.Fprintln(out, "Quiz commands:")
	fmt.Fprintln(out, "  questions                 list questions and what you answered")
	fmt.Fprintln(out, "  show <n>                  show question n")
	fmt.Fprintln(out, "  answer <n> <option>...    choose options; multiple choice toggles")
	fmt.Fprintln(out, "  time")
	fmt.Fprintln(out, "  submit")
	fmt.Fprintln(out, "  leave                     keep answers and return later")
}

func parsePositiveInt(args []string, index int, defaultValue int) (int, error) {
	if len(args) <= index {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(args[index])
	if err != nil || value <= 0 {
		return 0, errors.New("must be a positive integer")
	}
	return value, nil
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("must be a positive integer")
	}
	return id, nil
}

// parsePageAndKeyword reads "[page] [keyword...]" starting at index. A
// non-numeric first word starts the keyword.
func parsePageAndKeyword(args []string, index int) (int, string, error) {
	if len(args) <= index {
		return 1, "", nil
	}
	if _, err := strconv.Atoi(args[index]); err != nil {
		return 1, strings.Join(args[index:], " "), nil
	}
	page, err := parsePositiveInt(args, index, 1)
	if err != nil {
		return 0, "", err
	}
	return page, strings.Join(args[index+1:], " "), nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func formatOptionalScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return formatScore(*score)
}

func promptYesNo(reader *bufio.Reader, out io.Writer, prompt string) (bool, error) {
	for {
		fmt.Fprint(out, prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(out, "Please answer yes or no.")
		}
	}
}

func promptLine(reader *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptIdentity asks for the student's details until they validate or
// maxAttempts is used up.
func promptIdentity(reader *bufio.Reader, out io.Writer, maxAttempts int) (quiz.StudentIdentity, error) {
	for attempt := 1; ; attempt++ {
		var identity quiz.StudentIdentity
		var err error
		if identity.Name, err = promptLine(reader, out, "Full name: "); err != nil {
			return quiz.StudentIdentity{}, err
		}
		if identity.DateOfBirth, err = promptLine(reader, out, "Date of birth (YYYY-MM-DD): "); err != nil {
			return quiz.StudentIdentity{}, err
		}
		if identity.ClassName, err = promptLine(reader, out, "Class (optional): "); err != nil {
			return quiz.StudentIdentity{}, err
		}

		identity.Normalize()
		validationErr := identity.Validate()
		if validationErr == nil {
			return identity, nil
		}
		for _, problem := range describeIdentityError(validationErr) {
			fmt.Fprintf(out, "  %s\n", problem)
		}
		if attempt >= maxAttempts {
			return quiz.StudentIdentity{}, errors.New("student details were not accepted")
		}
		fmt.Fprintf(out, "Please try again. Attempts remaining: %d\n", maxAttempts-attempt)
	}
}

func describeIdentityError(err error) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		field := fieldErr.Field()
		switch field {
		case "Name":
			field = "name"
		case "DateOfBirth":
			field = "date of birth"
		case "ClassName":
			field = "class"
		}

		switch fieldErr.Tag() {
		case "required":
			problems = append(problems, field+" is required")
		case "datetime":
			problems = append(problems, field+" must look like 2010-01-31")
		case "max":
			problems = append(problems, field+" is too long")
		default:
			problems = append(problems, field+" is invalid")
		}
	}
	return problems
}

func describeClientError(err error, serverURL string) error {
	if errors.Is(err, gateway.ErrServiceUnavailable) {
		return fmt.Errorf("quiz service unavailable at %s", serverURL)
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && len(apiErr.Errors) > 0 {
		return fmt.Errorf("%s (%s)", apiErr.Message, strings.Join(apiErr.Errors, "; "))
	}
	return err
}

func kindLabel(kind quiz.Kind) string {
	switch kind {
	case quiz.KindMultipleChoice:
		return "multiple choice"
	case quiz.KindTrueFalse:
		return "true/false"
	default:
		return "single choice"
	}
}

func optionDisplay(option quiz.Option) string {
	if strings.TrimSpace(option.Label) == "" || option.Label == option.Value {
		return option.Value
	}
	return fmt.Sprintf("%s. %s", option.Value, option.Label)
}

func optionsDisplay(options []quiz.Option) string {
	if len(options) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(options))
	for _, option := range options {
		parts = append(parts, optionDisplay(option))
	}
	return strings.Join(parts, ", ")
}

func pluralize(count int, singular string) string {
	if count == 1 {
		return "1 " + singular
	}
	return strconv.Itoa(count) + " " + singular + "s"
}
