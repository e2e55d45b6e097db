package userclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"quiz-taker/internal/countdown"
	"quiz-taker/internal/quiz"
	"quiz-taker/internal/session"
)

func (a *app) runPlay(ctx context.Context, quizID int64) error {
	out := a.out
	if _, ok := a.identities.Load(ctx); !ok {
		fmt.Fprintln(out, "Enter your details before starting a quiz.")
		if err := a.runIdentity(ctx); err != nil {
			return err
		}
	}

	snapshot, err := a.loadWithRetry(ctx, quizID)
	if err != nil {
		return err
	}
	if snapshot.State != session.StateActive {
		return nil
	}
	printAttemptHeader(out, snapshot)

	watchCtx, stopWatch := context.WithCancel(ctx)
	var watcher sync.WaitGroup
	watcher.Add(1)
	go func() {
		defer watcher.Done()
		a.session.Countdown().Run(watchCtx, func(remaining countdown.Remaining) {
			if remaining.Expired {
				fmt.Fprintln(out, "\nTime is up. Answers are locked; type 'submit' to send them.")
			}
		})
	}()
	defer func() {
		stopWatch()
		watcher.Wait()
	}()

	for {
		snapshot = a.session.Snapshot()
		fmt.Fprintf(out, "\n[%s] quiz %d> ", snapshot.Remaining, snapshot.Quiz.ID)
		line, err := a.reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(out)
			return err
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}

		switch strings.ToLower(args[0]) {
		case "help":
			printPlayHelp(out)
		case "questions", "list":
			printQuestionList(out, snapshot)
		case "show":
			question, index, ok := a.questionArg(snapshot, args)
			if !ok {
				continue
			}
			printQuestion(out, snapshot, question, index)
		case "answer":
			a.runAnswer(ctx, snapshot, args)
		case "time":
			printRemaining(out, snapshot)
		case "submit":
			done, err := a.runSubmit(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		case "leave":
			fmt.Fprintf(out, "Left quiz %d. Your answers are kept until the time runs out; play it again to continue.\n", snapshot.Quiz.ID)
			return nil
		default:
			fmt.Fprintln(out, "unknown quiz command. type 'help' for usage.")
		}
	}
}

func (a *app) loadWithRetry(ctx context.Context, quizID int64) (session.Snapshot, error) {
	for {
		snapshot, err := a.session.Load(ctx, quizID)
		if err == nil {
			return snapshot, nil
		}

		var loadErr *session.LoadError
		if !errors.As(err, &loadErr) {
			return session.Snapshot{}, err
		}
		fmt.Fprintf(a.out, "Could not load quiz %d: %v\n", quizID, describeClientError(loadErr.Err, a.serverURL))
		if !loadErr.Retryable() {
			return session.Snapshot{}, nil
		}
		retry, promptErr := promptYesNo(a.reader, a.out, "Retry? (yes/no): ")
		if promptErr != nil {
			return session.Snapshot{}, promptErr
		}
		if !retry {
			return session.Snapshot{}, nil
		}
	}
}

func printAttemptHeader(out io.Writer, snapshot session.Snapshot) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s\n", snapshot.Quiz.Title)
	if snapshot.Quiz.Description != "" {
		fmt.Fprintf(out, "%s\n", snapshot.Quiz.Description)
	}
	fmt.Fprintf(out, "%s, %s total. Student: %s\n",
		pluralize(snapshot.TotalQuestions, "question"),
		pluralize(snapshot.TotalPoints, "point"),
		snapshot.Student.Name,
	)

	switch snapshot.Resume {
	case session.ResumeRestored:
		fmt.Fprintf(out, "Resuming your attempt: %d of %d answered, %s left.\n",
			snapshot.Answered, snapshot.TotalQuestions, snapshot.Remaining)
	case session.ResumeExpiredReplaced:
		fmt.Fprintf(out, "Your previous attempt ran out of time. Starting again with %s.\n", snapshot.Remaining)
	default:
		fmt.Fprintf(out, "Timer started: %s.\n", snapshot.Remaining)
	}
	fmt.Fprintln(out, "Type 'questions' to see the questions or 'help' for commands.")
}

func printRemaining(out io.Writer, snapshot session.Snapshot) {
	if snapshot.Remaining.Expired {
		fmt.Fprintln(out, "Time is up.")
		return
	}
	fmt.Fprintf(out, "%s left, ends at %s\n", snapshot.Remaining, snapshot.EndAt.Local().Format("15:04:05"))
}

func printQuestionList(out io.Writer, snapshot session.Snapshot) {
	for index, question := range snapshot.Quiz.Questions {
		marker := " "
		if snapshot.Answers[question.ID] != "" {
			marker = "x"
		}
		fmt.Fprintf(out, "[%s] %d. %s\n", marker, index+1, question.Content)
	}
	fmt.Fprintf(out, "%d of %d answered\n", snapshot.Answered, snapshot.TotalQuestions)
}

func printQuestion(out io.Writer, snapshot session.Snapshot, question quiz.Question, index int) {
	fmt.Fprintf(out, "Question %d of %d (%s, %s)\n",
		index+1, snapshot.TotalQuestions, kindLabel(question.Kind), pluralize(question.Points, "point"))
	fmt.Fprintf(out, "%s\n\n", question.Content)

	answer := snapshot.Answers[question.ID]
	for _, option := range question.Options {
		mark := "( )"
		if question.IsMultiple() {
			mark = "[ ]"
		}
		if question.Selected(answer, option.Value) {
			mark = "(*)"
			if question.IsMultiple() {
				mark = "[x]"
			}
		}
		fmt.Fprintf(out, "  %s %s\n", mark, optionDisplay(option))
	}
}

// questionArg resolves the 1-based question number in args[1].
func (a *app) questionArg(snapshot session.Snapshot, args []string) (quiz.Question, int, bool) {
	if len(args) < 2 {
		fmt.Fprintf(a.out, "usage: %s <question_number>\n", args[0])
		return quiz.Question{}, 0, false
	}
	number, err := strconv.Atoi(args[1])
	if err != nil || number < 1 || number > len(snapshot.Quiz.Questions) {
		fmt.Fprintf(a.out, "question number must be between 1 and %d\n", len(snapshot.Quiz.Questions))
		return quiz.Question{}, 0, false
	}
	return snapshot.Quiz.Questions[number-1], number - 1, true
}

func (a *app) runAnswer(ctx context.Context, snapshot session.Snapshot, args []string) {
	out := a.out
	if len(args) < 3 {
		fmt.Fprintln(out, "usage: answer <question_number> <option>...")
		return
	}
	question, index, ok := a.questionArg(snapshot, args)
	if !ok {
		return
	}
	tokens := args[2:]
	if !question.IsMultiple() && len(tokens) > 1 {
		fmt.Fprintf(out, "question %d takes a single option\n", index+1)
		return
	}

	answer := snapshot.Answers[question.ID]
	for _, raw := range tokens {
		option, found := matchOption(question, raw)
		if !found {
			fmt.Fprintf(out, "unknown option %q for question %d\n", raw, index+1)
			return
		}
		next, err := a.session.Select(ctx, question.ID, option.Value)
		if err != nil {
			if errors.Is(err, session.ErrTimeExpired) {
				fmt.Fprintln(out, "Time is up; answers can no longer change.")
				return
			}
			fmt.Fprintf(out, "error: %v\n", err)
			return
		}
		answer = next
	}

	if answer == "" {
		fmt.Fprintf(out, "Question %d cleared.\n", index+1)
		return
	}
	selected := make([]quiz.Option, 0)
	for _, option := range question.Options {
		if question.Selected(answer, option.Value) {
			selected = append(selected, option)
		}
	}
	fmt.Fprintf(out, "Question %d: %s\n", index+1, optionsDisplay(selected))
}

// matchOption accepts an option token or its label, case-insensitively.
func matchOption(question quiz.Question, raw string) (quiz.Option, bool) {
	if option, ok := question.OptionByValue(raw); ok {
		return option, true
	}
	for _, option := range question.Options {
		if strings.EqualFold(option.Value, raw) || strings.EqualFold(option.Label, raw) {
			return option, true
		}
	}
	return quiz.Option{}, false
}

func (a *app) runSubmit(ctx context.Context) (bool, error) {
	out := a.out
	snapshot := a.session.Snapshot()
	prompt := fmt.Sprintf("Submit %d of %d answers? (yes/no): ", snapshot.Answered, snapshot.TotalQuestions)
	confirmed, err := promptYesNo(a.reader, out, prompt)
	if err != nil {
		return false, err
	}
	if !confirmed {
		return false, nil
	}

	result, err := a.session.Submit(ctx)
	if errors.Is(err, session.ErrNothingToSubmit) {
		fmt.Fprintln(out, "Time ran out before anything was answered; there is nothing to submit.")
		return true, nil
	}
	if err != nil {
		return false, err
	}

	fmt.Fprintln(out, "Submitted.")
	if result.ServerAttemptID == 0 {
		a.log.Warn("submission stayed local", "quiz_id", result.QuizID)
	} else if result.Failed > 0 {
		a.log.Warn("some answers were not recorded",
			"quiz_id", result.QuizID,
			"attempt_id", result.ServerAttemptID,
			"failed", result.Failed,
		)
	}
	a.printReview()
	return true, nil
}

func (a *app) printReview() {
	out := a.out
	_, items, err := a.session.Review()
	if err != nil {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Review:")
	for index, item := range items {
		fmt.Fprintf(out, "%d. %s\n", index+1, item.Question.Content)
		fmt.Fprintf(out, "   your answer: %s", optionsDisplay(item.Selected))
		if len(item.Correct) > 0 && len(item.Selected) > 0 {
			if sameOptions(item.Selected, item.Correct) {
				fmt.Fprint(out, " (correct)")
			} else {
				fmt.Fprint(out, " (incorrect)")
			}
		}
		fmt.Fprintln(out)
		if len(item.Correct) > 0 {
			fmt.Fprintf(out, "   correct answer: %s\n", optionsDisplay(item.Correct))
		}
		if item.Explanation != "" {
			fmt.Fprintf(out, "   explanation: %s\n", item.Explanation)
		}
	}
}

func sameOptions(left, right []quiz.Option) bool {
	if len(left) != len(right) {
		return false
	}
	seen := make(map[string]struct{}, len(left))
	for _, option := range left {
		seen[option.Value] = struct{}{}
	}
	for _, option := range right {
		if _, ok := seen[option.Value]; !ok {
			return false
		}
	}
	return true
}
