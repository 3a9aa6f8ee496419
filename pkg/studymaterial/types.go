// Package studymaterial defines the study material pipeline: its input
// (a page snapshot plus preferences), its nine steps and the document it produces.
package studymaterial

import "time"

// PageContext is an immutable snapshot of an extracted web page.
type PageContext struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Description string `json:"description"`
	MainContent string `json:"mainContent"`
	Timestamp   string `json:"timestamp"`
}

// Body returns the main content, falling back to the raw page text.
func (p PageContext) Body() string {
	if p.MainContent != "" {
		return p.MainContent
	}
	return p.Text
}

const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

type MaterialType string

const (
	MaterialSummary     MaterialType = "summary"
	MaterialQuestions   MaterialType = "questions"
	MaterialFlashcards  MaterialType = "flashcards"
	MaterialPractice    MaterialType = "practice"
	MaterialKeyConcepts MaterialType = "key_concepts"
)

const DefaultUserID = "default"

// DefaultMaterialTypes is used when a request names none.
func DefaultMaterialTypes() []MaterialType {
	return []MaterialType{MaterialSummary, MaterialQuestions, MaterialFlashcards, MaterialKeyConcepts}
}

// Params are the persisted inputs of one generation run.
type Params struct {
	PageContext   PageContext    `json:"pageContext"`
	UserID        string         `json:"userId"`
	Difficulty    string         `json:"difficulty"`
	MaterialTypes []MaterialType `json:"materialTypes"`
}

// WithDefaults fills the optional fields.
func (p Params) WithDefaults() Params {
	if p.UserID == "" {
		p.UserID = DefaultUserID
	}
	if p.Difficulty == "" {
		p.Difficulty = DifficultyIntermediate
	}
	if len(p.MaterialTypes) == 0 {
		p.MaterialTypes = DefaultMaterialTypes()
	}
	return p
}

// Wants reports whether the optional section t was requested.
func (p Params) Wants(t MaterialType) bool {
	for _, m := range p.MaterialTypes {
		if m == t {
			return true
		}
	}
	return false
}

type ContentAnalysis struct {
	Topics            []string `json:"topics"`
	Complexity        string   `json:"complexity"`
	EstimatedReadTime string   `json:"estimatedReadTime"`
	ContentType       string   `json:"contentType"`
}

type KeyConcept struct {
	Concept     string `json:"concept"`
	Explanation string `json:"explanation"`
	Importance  string `json:"importance"`
}

type StudyQuestion struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
}

type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type PracticeProblem struct {
	Problem  string   `json:"problem"`
	Solution string   `json:"solution"`
	Hints    []string `json:"hints"`
}

type Metadata struct {
	GeneratedAt time.Time `json:"generatedAt"`
	PageTitle   string    `json:"pageTitle"`
	PageURL     string    `json:"pageUrl"`
	Difficulty  string    `json:"difficulty"`
}

// StudyMaterial is the output of a completed run.
type StudyMaterial struct {
	Summary            string            `json:"summary"`
	KeyConcepts        []KeyConcept      `json:"keyConcepts"`
	StudyQuestions     []StudyQuestion   `json:"studyQuestions"`
	Flashcards         []Flashcard       `json:"flashcards"`
	PracticeProblems   []PracticeProblem `json:"practiceProblems"`
	LearningObjectives []string          `json:"learningObjectives"`
	EstimatedStudyTime string            `json:"estimatedStudyTime"`
	Metadata           Metadata          `json:"metadata"`
}

// Record is the audit entry written by the persist step.
type Record struct {
	MaterialID string
	InstanceID string
	UserID     string
	PageURL    string
	PageTitle  string
	CreatedAt  time.Time
}

// PersistResult is the output of the persist step.
type PersistResult struct {
	Stored     bool   `json:"stored"`
	MaterialID string `json:"materialId,omitempty"`
}
