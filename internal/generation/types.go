package generation

import (
	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/llm"
	"github.com/nikhilbhutani/revisionrag/internal/models"
)

type Task string

const (
	TaskNotes             Task = "notes"
	TaskFlashcards        Task = "flashcards"
	TaskQuiz              Task = "quiz"
	TaskPracticeExercises Task = "practice-exercises"
	TaskPastPaperAnalysis Task = "past-paper-analysis"
	TaskTutorChat         Task = "tutor-chat"
)

func (t Task) Valid() bool {
	switch t {
	case TaskNotes, TaskFlashcards, TaskQuiz, TaskPracticeExercises, TaskPastPaperAnalysis, TaskTutorChat:
		return true
	}
	return false
}

// Structured tasks return typed items and fail on unparseable output.
func (t Task) Structured() bool {
	return t == TaskFlashcards || t == TaskQuiz
}

// Kind is the vector namespace the task reads from.
func (t Task) Kind() models.Kind {
	if t == TaskPastPaperAnalysis {
		return models.KindPastPapers
	}
	return models.KindMaterials
}

const (
	StatusOK                  = "ok"
	StatusInsufficientContext = "insufficient_context"
)

// Params are the task knobs. Zero values are replaced by defaults.
type Params struct {
	UserID        string
	Count         int
	Difficulty    string
	Style         string
	AcademicLevel string
	Query         string
	History       []llm.Message
}

const (
	defaultCount         = 10
	maxFlashcards        = 50
	maxQuizQuestions     = 30
	maxPracticeExercises = 20
)

func (p Params) normalize(task Task) (Params, error) {
	if p.Count < 0 {
		return p, apperr.Validation("count", "must not be negative")
	}
	limit := 0
	switch task {
	case TaskFlashcards:
		limit = maxFlashcards
	case TaskQuiz:
		limit = maxQuizQuestions
	case TaskPracticeExercises:
		limit = maxPracticeExercises
	}
	if limit > 0 {
		if p.Count == 0 {
			p.Count = min(defaultCount, limit)
		}
		if p.Count > limit {
			return p, apperr.Validation("count", "must be between 1 and %d for %s", limit, task)
		}
	}
	if p.Difficulty == "" {
		p.Difficulty = "medium"
	}
	if p.Style == "" {
		p.Style = "clear, concise"
	}
	if p.AcademicLevel == "" {
		p.AcademicLevel = "secondary or university"
	}
	return p, nil
}

type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// QuizQuestion always has four options. CorrectIndex is -1 when the model
// did not say which option is right.
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
}

type Result struct {
	Task          Task           `json:"task"`
	Status        string         `json:"status"`
	Markdown      string         `json:"markdown,omitempty"`
	Flashcards    []Flashcard    `json:"flashcards,omitempty"`
	Questions     []QuizQuestion `json:"questions,omitempty"`
	TokensUsed    int            `json:"tokens_used"`
	Provider      string         `json:"provider,omitempty"`
	Model         string         `json:"model,omitempty"`
	Fallback      bool           `json:"fallback"`
	ChunkCount    int            `json:"chunk_count"`
	DocumentCount int            `json:"document_count"`
	Truncated     bool           `json:"truncated,omitempty"`
	Message       string         `json:"message,omitempty"`
}
