package studymaterial

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnparseable is returned when a model reply has neither the JSON nor the line shape asked for.
var ErrUnparseable = errors.New("model reply could not be parsed")

// decodeJSON decodes the first JSON object or array embedded in reply,
// tolerating prose and code fences around it.
func decodeJSON(reply string, v any) error {
	start := strings.IndexAny(reply, "[{")
	if start < 0 {
		return ErrUnparseable
	}
	open := reply[start]
	closeCh := byte('}')
	if open == '[' {
		closeCh = ']'
	}
	end := strings.LastIndexByte(reply, closeCh)
	if end <= start {
		return ErrUnparseable
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), v); err != nil {
		return errors.Join(ErrUnparseable, err)
	}
	return nil
}

// labelled splits reply into records of "LABEL: value" lines. A new record
// starts whenever the first label reappears.
func labelled(reply string, first string, labels ...string) []map[string][]string {
	all := append([]string{first}, labels...)
	var out []map[string][]string
	var cur map[string][]string
	var last string
	for _, raw := range strings.Split(reply, "\n") {
		line := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), "-*0123456789. "))
		if line == "" {
			continue
		}
		matched := false
		for _, l := range all {
			prefix := l + ":"
			if len(line) >= len(prefix) && strings.EqualFold(line[:len(prefix)], prefix) {
				val := strings.TrimSpace(line[len(prefix):])
				if l == first {
					cur = map[string][]string{}
					out = append(out, cur)
				}
				if cur != nil {
					cur[l] = append(cur[l], val)
					last = l
				}
				matched = true
				break
			}
		}
		// continuation lines extend the previous value
		if !matched && cur != nil && last != "" {
			vals := cur[last]
			vals[len(vals)-1] = strings.TrimSpace(vals[len(vals)-1] + " " + line)
		}
	}
	return out
}

func firstOf(m map[string][]string, key string) string {
	if v := m[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func parseKeyConcepts(reply string) ([]KeyConcept, error) {
	var out []KeyConcept
	if err := decodeJSON(reply, &out); err == nil && len(out) > 0 {
		return out, nil
	}
	out = nil
	for _, r := range labelled(reply, "CONCEPT", "EXPLANATION", "IMPORTANCE") {
		out = append(out, KeyConcept{
			Concept:     firstOf(r, "CONCEPT"),
			Explanation: firstOf(r, "EXPLANATION"),
			Importance:  firstOf(r, "IMPORTANCE"),
		})
	}
	if len(out) == 0 {
		return nil, ErrUnparseable
	}
	return out, nil
}

var questionDifficulties = []string{"easy", "medium", "hard"}

func parseStudyQuestions(reply string) ([]StudyQuestion, error) {
	var out []StudyQuestion
	if err := decodeJSON(reply, &out); err == nil && len(out) > 0 {
		return out, nil
	}
	out = nil
	for i, r := range labelled(reply, "Q", "A", "DIFFICULTY") {
		d := strings.ToLower(firstOf(r, "DIFFICULTY"))
		if d == "" {
			d = questionDifficulties[i%len(questionDifficulties)]
		}
		out = append(out, StudyQuestion{Question: firstOf(r, "Q"), Answer: firstOf(r, "A"), Difficulty: d})
	}
	if len(out) == 0 {
		return nil, ErrUnparseable
	}
	return out, nil
}

func parseFlashcards(reply string) ([]Flashcard, error) {
	var out []Flashcard
	if err := decodeJSON(reply, &out); err == nil && len(out) > 0 {
		return out, nil
	}
	out = nil
	for _, r := range labelled(reply, "FRONT", "BACK") {
		out = append(out, Flashcard{Front: firstOf(r, "FRONT"), Back: firstOf(r, "BACK")})
	}
	if len(out) == 0 {
		return nil, ErrUnparseable
	}
	return out, nil
}

func parsePracticeProblems(reply string) ([]PracticeProblem, error) {
	out := []PracticeProblem{}
	if err := decodeJSON(reply, &out); err == nil {
		for i := range out {
			if out[i].Hints == nil {
				out[i].Hints = []string{}
			}
		}
		return out, nil
	}
	out = []PracticeProblem{}
	for _, r := range labelled(reply, "PROBLEM", "SOLUTION", "HINT") {
		hints := r["HINT"]
		if hints == nil {
			hints = []string{}
		}
		out = append(out, PracticeProblem{Problem: firstOf(r, "PROBLEM"), Solution: firstOf(r, "SOLUTION"), Hints: hints})
	}
	if len(out) == 0 {
		return nil, ErrUnparseable
	}
	return out, nil
}
