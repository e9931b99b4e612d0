package ai

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure LocalLLM implements LLMService
var _ driven.LLMService = (*LocalLLM)(nil)

const (
	localAnswerSentences = 3
	noContextAnswer      = "No relevant information was found in the indexed documents."
)

// LocalLLM answers extractively: it returns the context sentences that share
// the most words with the question, in their original order.
// It is the offline provider and the fallback when a remote LLM fails.
type LocalLLM struct{}

// NewLocalLLM creates an extractive answerer
func NewLocalLLM() *LocalLLM {
	return &LocalLLM{}
}

// Generate extracts an answer from the context embedded in prompt
func (l *LocalLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	passages, question := domain.SplitPrompt(prompt)
	sentences := splitSentences(passages)
	if len(sentences) == 0 {
		return noContextAnswer, nil
	}

	terms := make(map[string]bool)
	for _, t := range domain.Tokenize(question) {
		terms[t] = true
	}

	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		for _, t := range domain.Tokenize(s) {
			if terms[t] {
				ranked[i].score++
			}
		}
		ranked[i].idx = i
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if ranked[0].score == 0 {
		return noContextAnswer, nil
	}

	var picked []int
	for _, r := range ranked {
		if r.score == 0 || len(picked) == localAnswerSentences {
			break
		}
		picked = append(picked, r.idx)
	}
	sort.Ints(picked)

	parts := make([]string, len(picked))
	for i, idx := range picked {
		parts[i] = sentences[idx]
	}
	return strings.Join(parts, " "), nil
}

// splitSentences breaks text at sentence punctuation and line breaks,
// dropping source markers such as "[1]".
func splitSentences(text string) []string {
	var out []string
	var sb strings.Builder
	flush := func() {
		s := strings.TrimSpace(sb.String())
		sb.Reset()
		if s != "" && strings.IndexFunc(s, unicode.IsLetter) >= 0 {
			out = append(out, s)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = stripMarker(strings.TrimSpace(line))
		for _, r := range line {
			sb.WriteRune(r)
			if r == '.' || r == '!' || r == '?' {
				flush()
			}
		}
		flush()
	}
	return out
}

func stripMarker(line string) string {
	if strings.HasPrefix(line, "[") {
		if i := strings.Index(line, "]"); i > 0 {
			return strings.TrimSpace(line[i+1:])
		}
	}
	return line
}

// Model returns the model name being used
func (l *LocalLLM) Model() string {
	return "extractive"
}

// Ping always succeeds
func (l *LocalLLM) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (l *LocalLLM) Close() error {
	return nil
}
