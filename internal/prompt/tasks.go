package prompt

import "fmt"

// Template is a system/user prompt pair for one generation task.
type Template struct {
	System string
	User   string
}

const groundingRule = `Use ONLY the study material provided between the <material> tags. If the material does not cover something, say so instead of inventing facts.`

var tasks = map[string]Template{
	"notes": {
		System: `You are an expert study-notes writer helping a {{academic_level}} student revise for exams. ` + groundingRule,
		User: `Write {{style}} revision notes in Markdown from the material below.
Organise them with headings, bullet points and **bold** key terms. Finish with a short "Key takeaways" list.
{{focus}}
<material>
{{context}}
</material>`,
	},
	"flashcards": {
		System: `You create concise, exam-focused flashcards for a {{academic_level}} student. ` + groundingRule,
		User: `Create exactly {{count}} flashcards at {{difficulty}} difficulty from the material below.
{{focus}}
Respond with ONLY a JSON array, no prose and no code fences. Each element must be:
{"front": "question or term", "back": "answer or definition"}

<material>
{{context}}
</material>`,
	},
	"quiz": {
		System: `You write multiple-choice exam questions for a {{academic_level}} student. ` + groundingRule,
		User: `Write exactly {{count}} multiple-choice questions at {{difficulty}} difficulty from the material below.
{{focus}}
Respond with ONLY a JSON array, no prose and no code fences. Each element must be:
{"question": "...", "options": ["A", "B", "C", "D"], "correct_answer": 0, "explanation": "..."}
"options" has exactly 4 entries and "correct_answer" is the 0-based index of the right option.

<material>
{{context}}
</material>`,
	},
	"practice-exercises": {
		System: `You design practice exercises that help a {{academic_level}} student apply what they learned. ` + groundingRule,
		User: `Write {{count}} practice exercises at {{difficulty}} difficulty in Markdown, based on the material below.
Number each exercise, then give a worked solution for each under a "Solutions" heading.
{{focus}}
<material>
{{context}}
</material>`,
	},
	"past-paper-analysis": {
		System: `You are an experienced examiner analysing past exam papers for a {{academic_level}} student. ` + groundingRule,
		User: `Analyse the past paper material below in Markdown:
1. Recurring topics and how often they appear.
2. Question styles and command words used.
3. How marks are typically allocated.
4. A prioritised revision plan based on the patterns.
{{focus}}
<material>
{{context}}
</material>`,
	},
	"tutor-chat": {
		System: `You are a patient tutor helping a {{academic_level}} student understand their course material. ` + groundingRule + `
Answer in {{style}} Markdown. When the question goes beyond the material, say what is missing and suggest what to upload.

<material>
{{context}}
</material>`,
		User: `{{query}}`,
	},
}

// ForTask returns the template registered for task.
func ForTask(task string) (Template, bool) {
	t, ok := tasks[task]
	return t, ok
}

// Build renders both halves of a task template.
func Build(task string, vars map[string]string) (system, user string, err error) {
	t, ok := tasks[task]
	if !ok {
		return "", "", fmt.Errorf("no prompt template for task %q", task)
	}
	if system, err = Render(t.System, vars); err != nil {
		return "", "", fmt.Errorf("render %s system prompt: %w", task, err)
	}
	if user, err = Render(t.User, vars); err != nil {
		return "", "", fmt.Errorf("render %s user prompt: %w", task, err)
	}
	return system, user, nil
}
