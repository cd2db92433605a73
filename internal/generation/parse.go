package generation

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
)

var errNoArray = errors.New("no JSON array in output")

// extractJSONArray decodes the first JSON array in raw, ignoring code fences
// and any prose before or after it.
func extractJSONArray(raw string) ([]json.RawMessage, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexByte(s, '[')
	if start < 0 {
		return nil, errNoArray
	}

	var items []json.RawMessage
	if err := json.NewDecoder(strings.NewReader(s[start:])).Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// ParseFlashcards tries strict JSON first, then "Q:/A:" or "Front:/Back:"
// plain text. Neither matching is a ParseFailure.
func ParseFlashcards(raw string) ([]Flashcard, error) {
	if cards := strictFlashcards(raw); len(cards) > 0 {
		return cards, nil
	}
	if cards := heuristicFlashcards(raw); len(cards) > 0 {
		return cards, nil
	}
	return nil, &apperr.ParseFailure{Task: string(TaskFlashcards), Raw: raw}
}

func strictFlashcards(raw string) []Flashcard {
	items, err := extractJSONArray(raw)
	if err != nil {
		return nil
	}
	var cards []Flashcard
	for _, it := range items {
		var c struct {
			Front    string `json:"front"`
			Back     string `json:"back"`
			Question string `json:"question"`
			Answer   string `json:"answer"`
		}
		if json.Unmarshal(it, &c) != nil {
			continue
		}
		front := strings.TrimSpace(firstNonEmpty(c.Front, c.Question))
		back := strings.TrimSpace(firstNonEmpty(c.Back, c.Answer))
		if front == "" || back == "" {
			continue
		}
		cards = append(cards, Flashcard{Front: front, Back: back})
	}
	return cards
}

var (
	frontLine = regexp.MustCompile(`(?i)^\s*(?:\d+[.)]\s*)?[*_]*(?:q|question|front)[*_]*\s*[:\-]\s*[*_]*\s*(.+)$`)
	backLine  = regexp.MustCompile(`(?i)^\s*[*_]*(?:a|answer|back)[*_]*\s*[:\-]\s*[*_]*\s*(.+)$`)
)

func heuristicFlashcards(raw string) []Flashcard {
	var (
		cards   []Flashcard
		current *Flashcard
	)
	flush := func() {
		if current != nil && current.Front != "" && current.Back != "" {
			current.Back = strings.TrimSpace(current.Back)
			cards = append(cards, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		if m := frontLine.FindStringSubmatch(line); m != nil {
			flush()
			current = &Flashcard{Front: strings.TrimSpace(m[1])}
			continue
		}
		if current == nil {
			continue
		}
		if m := backLine.FindStringSubmatch(line); m != nil && current.Back == "" {
			current.Back = strings.TrimSpace(m[1])
			continue
		}
		if current.Back != "" && strings.TrimSpace(line) != "" {
			current.Back += " " + strings.TrimSpace(line)
		}
	}
	flush()
	return cards
}

// ParseQuiz tries strict JSON first, then numbered questions with A-D
// options. Only questions with exactly four options are kept.
func ParseQuiz(raw string) ([]QuizQuestion, error) {
	if qs := strictQuiz(raw); len(qs) > 0 {
		return qs, nil
	}
	if qs := heuristicQuiz(raw); len(qs) > 0 {
		return qs, nil
	}
	return nil, &apperr.ParseFailure{Task: string(TaskQuiz), Raw: raw}
}

func strictQuiz(raw string) []QuizQuestion {
	items, err := extractJSONArray(raw)
	if err != nil {
		return nil
	}
	var out []QuizQuestion
	for _, it := range items {
		var q struct {
			Question      string          `json:"question"`
			Options       []string        `json:"options"`
			CorrectAnswer json.RawMessage `json:"correct_answer"`
			CorrectCamel  json.RawMessage `json:"correctAnswer"`
			Answer        json.RawMessage `json:"answer"`
			Explanation   string          `json:"explanation"`
		}
		if json.Unmarshal(it, &q) != nil {
			continue
		}
		if strings.TrimSpace(q.Question) == "" || len(q.Options) != 4 {
			continue
		}
		answer := q.CorrectAnswer
		if len(answer) == 0 {
			answer = q.CorrectCamel
		}
		if len(answer) == 0 {
			answer = q.Answer
		}
		out = append(out, QuizQuestion{
			Question:     strings.TrimSpace(q.Question),
			Options:      trimAll(q.Options),
			CorrectIndex: answerIndex(answer, q.Options),
			Explanation:  strings.TrimSpace(q.Explanation),
		})
	}
	return out
}

// answerIndex accepts a 0-based index, a letter, or the option text.
func answerIndex(raw json.RawMessage, options []string) int {
	if len(raw) == 0 || string(raw) == "null" {
		return -1
	}
	var n int
	if json.Unmarshal(raw, &n) == nil {
		if n >= 0 && n < len(options) {
			return n
		}
		return -1
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return -1
	}
	s = strings.TrimSpace(s)
	if i := letterIndex(s); i >= 0 {
		return i
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < len(options) {
		return n
	}
	for i, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), s) {
			return i
		}
	}
	return -1
}

// letterIndex maps "B", "b)", "(C)" or "D." to 0..3.
func letterIndex(s string) int {
	s = strings.Trim(s, "().: ")
	if len(s) != 1 {
		return -1
	}
	switch c := s[0] | 0x20; c {
	case 'a', 'b', 'c', 'd':
		return int(c - 'a')
	}
	return -1
}

var (
	questionLine    = regexp.MustCompile(`(?i)^\s*[*_]*(?:q(?:uestion)?\s*)?(\d+)[.):]\s*[*_]*\s*(.+?)[*_]*\s*$`)
	optionLine      = regexp.MustCompile(`^\s*[*_-]*\s*\(?([A-Da-d])[).:][*_]*\s+(.+?)[*_]*\s*$`)
	answerLine      = regexp.MustCompile(`(?i)^\s*[*_]*(?:correct\s+)?answer[*_]*\s*[:\-]\s*[*_]*\s*\(?([A-D])\b`)
	explanationLine = regexp.MustCompile(`(?i)^\s*[*_]*explanation[*_]*\s*[:\-]\s*[*_]*\s*(.+)$`)
)

func heuristicQuiz(raw string) []QuizQuestion {
	var (
		out     []QuizQuestion
		current *QuizQuestion
	)
	flush := func() {
		if current != nil && len(current.Options) == 4 {
			out = append(out, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		if m := answerLine.FindStringSubmatch(line); m != nil {
			if current != nil {
				current.CorrectIndex = letterIndex(m[1])
			}
			continue
		}
		if m := explanationLine.FindStringSubmatch(line); m != nil {
			if current != nil {
				current.Explanation = strings.TrimSpace(m[1])
			}
			continue
		}
		if m := optionLine.FindStringSubmatch(line); m != nil && current != nil {
			if letterIndex(m[1]) == len(current.Options) {
				current.Options = append(current.Options, strings.TrimSpace(m[2]))
			}
			continue
		}
		if m := questionLine.FindStringSubmatch(line); m != nil {
			flush()
			current = &QuizQuestion{Question: strings.TrimSpace(m[2]), CorrectIndex: -1}
			continue
		}
		if current != nil && len(current.Options) == 0 && strings.TrimSpace(line) != "" {
			current.Question += " " + strings.TrimSpace(line)
		}
	}
	flush()
	return out
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
