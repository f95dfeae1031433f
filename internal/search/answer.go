package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

// ErrNoContext is returned by Answer when retrieval found nothing. No
// prompt is sent in that case.
var ErrNoContext = errors.New("no relevant manual content found")

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Answer is a generated answer with the contexts it was grounded on.
type Answer struct {
	Text     string          `json:"answer"`
	Contexts []ContextRecord `json:"contexts"`
}

// Synthesizer answers questions from retrieved manual context.
type Synthesizer struct {
	retriever *Retriever
	generator Generator
	retry     *amerrors.Policy
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(retriever *Retriever, generator Generator) *Synthesizer {
	return &Synthesizer{retriever: retriever, generator: generator}
}

// WithRetry makes Answer retry transient generation failures under p.
func (s *Synthesizer) WithRetry(p amerrors.Policy) *Synthesizer {
	s.retry = &p
	return s
}

// Answer retrieves up to k contexts and asks the generator to answer from
// them. With no contexts it returns an empty Answer and ErrNoContext.
func (s *Synthesizer) Answer(ctx context.Context, query string, k int) (*Answer, error) {
	contexts, err := s.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(contexts) == 0 {
		return &Answer{Contexts: contexts}, ErrNoContext
	}

	prompt := BuildPrompt(query, contexts)
	var text string
	if s.retry != nil {
		text, err = amerrors.Execute(ctx, *s.retry, "generate", func(ctx context.Context) (string, error) {
			return s.generator.Generate(ctx, prompt)
		})
	} else {
		text, err = s.generator.Generate(ctx, prompt)
	}
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}
	return &Answer{Text: strings.TrimSpace(text), Contexts: contexts}, nil
}

// BuildPrompt renders the question and contexts as "[p.N] content" blocks.
func BuildPrompt(query string, contexts []ContextRecord) string {
	var b strings.Builder
	b.WriteString("다음 매뉴얼 내용에 근거하여 질문에 답하세요.\n\n")
	b.WriteString("질문: ")
	b.WriteString(query)
	b.WriteString("\n\n관련 문서:\n")
	for i, c := range contexts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[p.%d] %s", c.Page, c.Content)
	}
	return b.String()
}
