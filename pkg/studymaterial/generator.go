package studymaterial

import (
	"context"
	"fmt"
)

// Generator produces the model-backed sections of a study material.
type Generator interface {
	Analyze(ctx context.Context, p Params) (ContentAnalysis, error)
	Summarize(ctx context.Context, p Params) (string, error)
	KeyConcepts(ctx context.Context, p Params) ([]KeyConcept, error)
	StudyQuestions(ctx context.Context, p Params) ([]StudyQuestion, error)
	Flashcards(ctx context.Context, p Params) ([]Flashcard, error)
	PracticeProblems(ctx context.Context, p Params, analysis ContentAnalysis) ([]PracticeProblem, error)
}

// Placeholder is installed when no model capability is available. Every
// method returns a fixed value and never fails.
type Placeholder struct{}

var _ Generator = Placeholder{}

func (Placeholder) Analyze(_ context.Context, _ Params) (ContentAnalysis, error) {
	return ContentAnalysis{
		Topics:            []string{"General content"},
		Complexity:        DifficultyIntermediate,
		EstimatedReadTime: "5 minutes",
		ContentType:       "article",
	}, nil
}

func (Placeholder) Summarize(_ context.Context, p Params) (string, error) {
	return fmt.Sprintf("Study Summary: %s\n\nThis is a summary of the educational content from the page.", p.PageContext.Title), nil
}

func (Placeholder) KeyConcepts(_ context.Context, _ Params) ([]KeyConcept, error) {
	return []KeyConcept{{Concept: "Main Concept", Explanation: "Explanation here", Importance: "Core understanding"}}, nil
}

func (Placeholder) StudyQuestions(_ context.Context, _ Params) ([]StudyQuestion, error) {
	return []StudyQuestion{{Question: "What is the main concept?", Answer: "Answer here", Difficulty: "medium"}}, nil
}

func (Placeholder) Flashcards(_ context.Context, _ Params) ([]Flashcard, error) {
	return []Flashcard{{Front: "What is X?", Back: "X is..."}}, nil
}

func (Placeholder) PracticeProblems(_ context.Context, _ Params, _ ContentAnalysis) ([]PracticeProblem, error) {
	return []PracticeProblem{{Problem: "Apply concept X to scenario Y", Solution: "Solution steps", Hints: []string{"Hint 1", "Hint 2"}}}, nil
}

const maxTopicObjectives = 3

// LearningObjectives is derived locally from the page title and the analysed topics.
func LearningObjectives(title string, topics []string) []string {
	out := []string{
		fmt.Sprintf("Understand the core concepts presented in %s", title),
		"Apply key principles to practical scenarios",
		"Recall important definitions and terminology",
		"Analyze relationships between concepts",
	}
	added := 0
	for _, t := range topics {
		if t == "" || t == "General content" {
			continue
		}
		if added == maxTopicObjectives {
			break
		}
		out = append(out, fmt.Sprintf("Explain the role of %s", t))
		added++
	}
	return out
}
