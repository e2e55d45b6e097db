package quiz

import "strings"

// TokenSeparator joins the selected tokens of a multiple-choice answer.
const TokenSeparator = ","

func SplitTokens(answer string) []string {
	if answer == "" {
		return nil
	}
	parts := strings.Split(answer, TokenSeparator)
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens
}

func HasToken(answer, token string) bool {
	for _, existing := range SplitTokens(answer) {
		if existing == token {
			return true
		}
	}
	return false
}

// ToggleToken removes token from the joined answer when present and appends
// it otherwise. Selection order is preserved.
func ToggleToken(answer, token string) string {
	tokens := SplitTokens(answer)
	kept := make([]string, 0, len(tokens)+1)
	found := false
	for _, existing := range tokens {
		if existing == token {
			found = true
			continue
		}
		kept = append(kept, existing)
	}
	if !found {
		kept = append(kept, token)
	}
	return strings.Join(kept, TokenSeparator)
}

// ApplySelection returns the answer that results from picking token on
// question q given the current answer.
func ApplySelection(q Question, current, token string) string {
	if q.IsMultiple() {
		return ToggleToken(current, token)
	}
	return token
}

// Tokens lists the option tokens recorded in answer. Only multiple-choice
// answers are comma-joined; any other answer is a single token.
func (q Question) Tokens(answer string) []string {
	if q.IsMultiple() {
		return SplitTokens(answer)
	}
	if answer == "" {
		return nil
	}
	return []string{answer}
}

// Selected reports whether token is part of answer for this question.
func (q Question) Selected(answer, token string) bool {
	for _, existing := range q.Tokens(answer) {
		if existing == token {
			return true
		}
	}
	return false
}
