package domain

import (
	"strings"
	"unicode"
)

const (
	promptContextHeader  = "Context:\n"
	promptQuestionHeader = "\n\nQuestion: "
	promptAnswerFooter   = "\nAnswer:"

	// MaxPromptContext caps the characters of retrieved context sent to the LLM
	MaxPromptContext = 8000
)

// BuildPrompt renders the context-plus-question template.
// The context is truncated to MaxPromptContext runes.
func BuildPrompt(context, question string) string {
	if r := []rune(context); len(r) > MaxPromptContext {
		context = string(r[:MaxPromptContext])
	}
	return promptContextHeader + context + promptQuestionHeader + question + promptAnswerFooter
}

// SplitPrompt recovers the context and question from a BuildPrompt result.
// A prompt in any other shape is returned whole as the question.
func SplitPrompt(prompt string) (context, question string) {
	rest, ok := strings.CutPrefix(prompt, promptContextHeader)
	if !ok {
		return "", prompt
	}
	i := strings.LastIndex(rest, promptQuestionHeader)
	if i < 0 {
		return "", prompt
	}
	return rest[:i], strings.TrimSuffix(rest[i+len(promptQuestionHeader):], promptAnswerFooter)
}

// Tokenize lower-cases text and splits it into letter/digit runs.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
