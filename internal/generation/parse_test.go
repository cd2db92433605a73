package generation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
)

func TestParseQuiz_StrictJSON(t *testing.T) {
	raw := "Here is your quiz:\n```json\n" + `[
  {"question": "Where is ATP made?", "options": ["Nucleus", "Mitochondria", "Ribosome", "Golgi"], "correct_answer": 1, "explanation": "Respiration."},
  {"question": "Which is a base?", "options": ["Adenine", "Glucose", "Lipid", "Starch"], "correct_answer": "A"},
  {"question": "Too few options", "options": ["x", "y"], "correct_answer": 0}
]` + "\n```"

	qs, err := ParseQuiz(raw)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "Where is ATP made?", qs[0].Question)
	assert.Equal(t, 1, qs[0].CorrectIndex)
	assert.Equal(t, "Respiration.", qs[0].Explanation)
	assert.Equal(t, 0, qs[1].CorrectIndex)
}

func TestParseQuiz_HeuristicNumberedList(t *testing.T) {
	raw := `Sure! Here are the questions.

1. What is the powerhouse of the cell?
A) Nucleus
B) Mitochondria
C) Ribosome
D) Cell wall
Answer: B
Explanation: Mitochondria carry out aerobic respiration.

2. Which molecule stores genetic information?
a. RNA
b. ATP
c. DNA
d. Glucose
Correct answer: (C)

**Question 3:** Which process splits one cell into two
identical daughter cells?
(A) Meiosis
(B) Mitosis
(C) Osmosis
(D) Diffusion`

	qs, err := ParseQuiz(raw)
	require.NoError(t, err)
	require.Len(t, qs, 3)

	for _, q := range qs {
		assert.Len(t, q.Options, 4)
	}
	assert.Equal(t, "What is the powerhouse of the cell?", qs[0].Question)
	assert.Equal(t, []string{"Nucleus", "Mitochondria", "Ribosome", "Cell wall"}, qs[0].Options)
	assert.Equal(t, 1, qs[0].CorrectIndex)
	assert.Equal(t, "Mitochondria carry out aerobic respiration.", qs[0].Explanation)

	assert.Equal(t, 2, qs[1].CorrectIndex)

	assert.Equal(t, "Which process splits one cell into two identical daughter cells?", qs[2].Question)
	assert.Equal(t, -1, qs[2].CorrectIndex)
}

func TestParseQuiz_BoldOptionLetters(t *testing.T) {
	raw := "1. What?\n**A)** a\n**B)** b\n__C.__ c\n**D) d**\n**Answer:** D"

	qs, err := ParseQuiz(raw)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "What?", qs[0].Question)
	assert.Equal(t, []string{"a", "b", "c", "d"}, qs[0].Options)
	assert.Equal(t, 3, qs[0].CorrectIndex)
}

func TestParseQuiz_DropsIncompleteQuestions(t *testing.T) {
	raw := `1. Complete question?
A) one
B) two
C) three
D) four
2. Incomplete question?
A) only
B) two`

	qs, err := ParseQuiz(raw)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "Complete question?", qs[0].Question)
}

func TestParseQuiz_Failure(t *testing.T) {
	_, err := ParseQuiz("I'm sorry, I can't help with that.")

	var pf *apperr.ParseFailure
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, "quiz", pf.Task)
}

func TestParseFlashcards_StrictJSON(t *testing.T) {
	cards, err := ParseFlashcards(`[{"front": "ATP", "back": "Energy currency"}, {"question": "DNA?", "answer": "Genetic code"}, {"front": "", "back": "skip"}]`)
	require.NoError(t, err)
	assert.Equal(t, []Flashcard{
		{Front: "ATP", Back: "Energy currency"},
		{Front: "DNA?", Back: "Genetic code"},
	}, cards)
}

func TestParseFlashcards_Heuristic(t *testing.T) {
	raw := `1. Q: What is osmosis?
A: Movement of water across a partially permeable membrane
from dilute to concentrated solution.

**Front:** Enzyme
**Back:** A biological catalyst`

	cards, err := ParseFlashcards(raw)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "What is osmosis?", cards[0].Front)
	assert.Equal(t, "Movement of water across a partially permeable membrane from dilute to concentrated solution.", cards[0].Back)
	assert.Equal(t, Flashcard{Front: "Enzyme", Back: "A biological catalyst"}, cards[1])
}

func TestParseFlashcards_Failure(t *testing.T) {
	_, err := ParseFlashcards("no cards here")
	var pf *apperr.ParseFailure
	assert.True(t, errors.As(err, &pf))
}

func TestAnswerIndex(t *testing.T) {
	opts := []string{"red", "green", "blue", "yellow"}
	cases := map[string]int{
		`2`:        2,
		`"b"`:      1,
		`"D)"`:     3,
		`"3"`:      3,
		`"Green"`:  1,
		`7`:        -1,
		`"purple"`: -1,
		`null`:     -1,
	}
	for raw, want := range cases {
		assert.Equal(t, want, answerIndex([]byte(raw), opts), raw)
	}
}
