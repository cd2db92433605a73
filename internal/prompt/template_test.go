package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out, err := Render("Explain {{topic}} to a {{level}} student. {{topic}}!", map[string]string{
		"topic": "osmosis",
		"level": "GCSE",
	})
	require.NoError(t, err)
	assert.Equal(t, "Explain osmosis to a GCSE student. osmosis!", out)

	_, err = Render("{{missing}} and {{present}}", map[string]string{"present": "x"})
	assert.ErrorContains(t, err, "missing")
}

func TestRender_ValuesAreNotReexpanded(t *testing.T) {
	out, err := Render("<material>{{context}}</material>", map[string]string{"context": "literal {{count}} braces"})
	require.NoError(t, err)
	assert.Equal(t, "<material>literal {{count}} braces</material>", out)
}

func TestRender_CollapsesBlankLines(t *testing.T) {
	out, err := Render("Intro\n{{ focus }}\n\nBody", map[string]string{"focus": ""})
	require.NoError(t, err)
	assert.Equal(t, "Intro\n\nBody", out)
}

func TestRender_ContextIsVerbatim(t *testing.T) {
	material := "Section 1\n\n\n\nSection 2\n\n\n"
	out, err := Render("Material:\n{{context}}\n\n\n{{focus}}\nEnd", map[string]string{
		"context": material,
		"focus":   "",
	})
	require.NoError(t, err)
	assert.Equal(t, "Material:\n"+material+"\n\nEnd", out)
}

func TestExtractVariables(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ExtractVariables("{{a}} {{ b }} {{a}}"))
	assert.Empty(t, ExtractVariables("no vars"))
}

func TestBuild_AllTasks(t *testing.T) {
	vars := map[string]string{
		"context":        "The mitochondria is the powerhouse of the cell.",
		"count":          "5",
		"difficulty":     "medium",
		"style":          "concise",
		"academic_level": "A-level",
		"focus":          "",
		"query":          "What do mitochondria do?",
	}
	for _, task := range []string{"notes", "flashcards", "quiz", "practice-exercises", "past-paper-analysis", "tutor-chat"} {
		t.Run(task, func(t *testing.T) {
			system, user, err := Build(task, vars)
			require.NoError(t, err)
			assert.NotContains(t, system+user, "{{")
			assert.Contains(t, system+user, "The mitochondria is the powerhouse of the cell.")
		})
	}

	_, _, err := Build("essay", vars)
	assert.Error(t, err)
}
