package studymaterial

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clarvis-be/pkg/llm"
)

const (
	analysisContentLimit = 3000
	contentLimit         = 4000
)

// Live asks the model for every section. A step whose model call reports
// llm.ErrModelUnavailable falls back to the placeholder value for that step;
// any other failure is returned so the engine can retry it.
type Live struct {
	provider llm.LLMProvider
	fallback Placeholder
}

var _ Generator = (*Live)(nil)

func NewLive(provider llm.LLMProvider) *Live {
	return &Live{provider: provider}
}

// NewGenerator picks the live generator when a model is configured.
func NewGenerator(provider llm.LLMProvider, available bool) Generator {
	if !available || provider == nil {
		return Placeholder{}
	}
	return NewLive(provider)
}

func (g *Live) ask(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (string, error) {
	history := make([]llm.Message, 0, 2)
	if system != "" {
		history = append(history, llm.Message{Role: "system", Content: system})
	}
	history = append(history, llm.Message{Role: "user", Content: prompt})
	return g.provider.Chat(ctx, history, llm.WithTemperature(temperature), llm.WithMaxTokens(maxTokens))
}

func unavailable(err error) bool {
	return errors.Is(err, llm.ErrModelUnavailable)
}

func (g *Live) Analyze(ctx context.Context, p Params) (ContentAnalysis, error) {
	prompt := fmt.Sprintf(`Analyze this educational content and provide a structured assessment:

Title: %s
Content: %s

Respond with a single JSON object with the fields:
"topics" (array of strings), "complexity" (beginner/intermediate/advanced),
"estimatedReadTime" (e.g. "10 minutes"), "contentType" (tutorial/article/documentation/textbook/course).`,
		p.PageContext.Title, truncate(p.PageContext.Body(), analysisContentLimit))

	reply, err := g.ask(ctx, "", prompt, 0.3, 500)
	if unavailable(err) {
		return g.fallback.Analyze(ctx, p)
	}
	if err != nil {
		return ContentAnalysis{}, err
	}

	var a ContentAnalysis
	if err := decodeJSON(reply, &a); err != nil || len(a.Topics) == 0 {
		// the model answered but not in shape; keep going with a neutral analysis
		a = ContentAnalysis{Topics: []string{p.PageContext.Title}, ContentType: "educational"}
	}
	if a.Complexity == "" {
		a.Complexity = p.Difficulty
	}
	if a.EstimatedReadTime == "" {
		a.EstimatedReadTime = "10 minutes"
	}
	return a, nil
}

func (g *Live) Summarize(ctx context.Context, p Params) (string, error) {
	prompt := fmt.Sprintf(`Create a comprehensive study summary of this content. Make it clear, structured, and perfect for review:

Title: %s
Content: %s

Structure your summary with:
1. Overview (2-3 sentences)
2. Main Points (bullet points)
3. Important Details
4. Conclusion/Key Takeaway`, p.PageContext.Title, truncate(p.PageContext.Body(), contentLimit))

	reply, err := g.ask(ctx, "You are an expert at creating clear, concise study summaries.", prompt, 0.5, 1500)
	if unavailable(err) {
		return g.fallback.Summarize(ctx, p)
	}
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errors.New("model returned an empty summary")
	}
	return reply, nil
}

func (g *Live) KeyConcepts(ctx context.Context, p Params) ([]KeyConcept, error) {
	prompt := fmt.Sprintf(`Extract the 5-8 most important concepts from this content. For each concept, provide
the concept name, a clear explanation and why it is important to understand.

Content: %s

Respond with a JSON array of objects with the fields "concept", "explanation", "importance".
If you cannot produce JSON, use this format for every concept:
CONCEPT: [name]
EXPLANATION: [explanation]
IMPORTANCE: [importance]`, truncate(p.PageContext.Body(), contentLimit))

	reply, err := g.ask(ctx, "You are an expert educator at identifying key concepts.", prompt, 0.4, 1500)
	if unavailable(err) {
		return g.fallback.KeyConcepts(ctx, p)
	}
	if err != nil {
		return nil, err
	}
	return parseKeyConcepts(reply)
}

func (g *Live) StudyQuestions(ctx context.Context, p Params) ([]StudyQuestion, error) {
	prompt := fmt.Sprintf(`Generate 8-10 study questions based on this content. Include a mix of
recall questions (easy), understanding questions (medium) and application questions (hard).
For each question, provide the answer.

Content: %s

Respond with a JSON array of objects with the fields "question", "answer", "difficulty".
If you cannot produce JSON, use this format for every question:
Q: [question]
A: [answer]
DIFFICULTY: [easy|medium|hard]`, truncate(p.PageContext.Body(), contentLimit))

	reply, err := g.ask(ctx, "You are an expert at creating effective study questions.", prompt, 0.6, 2000)
	if unavailable(err) {
		return g.fallback.StudyQuestions(ctx, p)
	}
	if err != nil {
		return nil, err
	}
	return parseStudyQuestions(reply)
}

func (g *Live) Flashcards(ctx context.Context, p Params) ([]Flashcard, error) {
	prompt := fmt.Sprintf(`Create 10-15 flashcards for active recall study. Each flashcard should have a clear,
specific question or prompt on the front and a concise, accurate answer on the back, focusing on
key facts, definitions, and relationships.

Content: %s

Format each as:
FRONT: [question]
BACK: [answer]`, truncate(p.PageContext.Body(), contentLimit))

	reply, err := g.ask(ctx, "You are an expert at creating effective flashcards for spaced repetition.", prompt, 0.5, 1500)
	if unavailable(err) {
		return g.fallback.Flashcards(ctx, p)
	}
	if err != nil {
		return nil, err
	}
	return parseFlashcards(reply)
}

func (g *Live) PracticeProblems(ctx context.Context, p Params, analysis ContentAnalysis) ([]PracticeProblem, error) {
	prompt := fmt.Sprintf(`Based on this educational content, create 3-5 practice problems that test application of concepts.

Content: %s

For each problem state the problem clearly, provide a step-by-step solution and include 2-3 hints.
Respond with a JSON array of objects with the fields "problem", "solution", "hints".
Only create problems if the content is suitable (math, programming, science, etc.);
otherwise respond with an empty JSON array [].`, truncate(p.PageContext.Body(), contentLimit))

	reply, err := g.ask(ctx, "You are an expert at creating practice problems.", prompt, 0.6, 2000)
	if unavailable(err) {
		return g.fallback.PracticeProblems(ctx, p, analysis)
	}
	if err != nil {
		return nil, err
	}
	return parsePracticeProblems(reply)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
