// Package guardrails screens user-typed text (tutor questions and focus
// queries) before it is placed in a prompt. Uploaded study material is never
// screened.
package guardrails

import (
	"context"
	"fmt"
	"strings"
)

// Result holds the outcome of a check.
type Result struct {
	Allowed bool               `json:"allowed"`
	Flags   []string           `json:"flags,omitempty"`
	Scores  map[string]float64 `json:"scores,omitempty"`
	Reason  string             `json:"reason,omitempty"`
}

// Guardrail is a single check applied to user input.
type Guardrail interface {
	Check(ctx context.Context, text string) (*Result, error)
	Name() string
}

// Pipeline runs guardrails in order and combines their results.
type Pipeline struct {
	guards []Guardrail
}

func NewPipeline(guards ...Guardrail) *Pipeline {
	return &Pipeline{guards: guards}
}

func (p *Pipeline) Add(g Guardrail) {
	p.guards = append(p.guards, g)
}

// Check reports the first blocking reason; flags and scores from every guard
// are kept.
func (p *Pipeline) Check(ctx context.Context, text string) (*Result, error) {
	combined := &Result{Allowed: true, Scores: make(map[string]float64)}

	for _, g := range p.guards {
		res, err := g.Check(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("guardrail %s: %w", g.Name(), err)
		}
		if !res.Allowed && combined.Allowed {
			combined.Allowed = false
			combined.Reason = res.Reason
		}
		combined.Flags = append(combined.Flags, res.Flags...)
		for k, v := range res.Scores {
			combined.Scores[k] = v
		}
	}

	return combined, nil
}

// Default is the input pipeline used for generation requests.
func Default() *Pipeline {
	return NewPipeline(
		NewInputLengthGuard(4000),
		NewInstructionOverrideDetector(),
	)
}

// InputLengthGuard rejects inputs longer than maxRunes characters.
type InputLengthGuard struct {
	maxRunes int
}

func NewInputLengthGuard(maxRunes int) *InputLengthGuard {
	return &InputLengthGuard{maxRunes: maxRunes}
}

func (g *InputLengthGuard) Name() string { return "input_length" }

func (g *InputLengthGuard) Check(_ context.Context, text string) (*Result, error) {
	if n := len([]rune(text)); n > g.maxRunes {
		return &Result{
			Reason: fmt.Sprintf("must be at most %d characters", g.maxRunes),
			Flags:  []string{"input_too_long"},
		}, nil
	}
	return &Result{Allowed: true}, nil
}

// InstructionOverrideDetector blocks text that tries to replace the tutor's
// instructions. Matching is on lowercase substrings.
type InstructionOverrideDetector struct {
	threshold float64
}

func NewInstructionOverrideDetector() *InstructionOverrideDetector {
	return &InstructionOverrideDetector{threshold: 0.8}
}

func (d *InstructionOverrideDetector) Name() string { return "instruction_override" }

var overridePatterns = []struct {
	pattern string
	weight  float64
	flag    string
}{
	{"ignore previous instructions", 0.9, "override_attempt"},
	{"ignore all previous", 0.9, "override_attempt"},
	{"disregard your instructions", 0.9, "override_attempt"},
	{"forget your instructions", 0.85, "override_attempt"},
	{"reveal your system", 0.8, "system_leak"},
	{"show me your prompt", 0.8, "system_leak"},
	{"system prompt:", 0.8, "system_leak"},
	{"</system>", 0.8, "tag_injection"},
	{"<system>", 0.8, "tag_injection"},
	{"pretend you are", 0.6, "role_hijack"},
}

func (d *InstructionOverrideDetector) Check(_ context.Context, text string) (*Result, error) {
	lower := strings.ToLower(text)
	score := 0.0
	var flags []string

	for _, p := range overridePatterns {
		if strings.Contains(lower, p.pattern) {
			score = max(score, p.weight)
			flags = append(flags, p.flag)
		}
	}

	res := &Result{Allowed: true, Flags: flags, Scores: map[string]float64{"override_score": score}}
	if score >= d.threshold {
		res.Allowed = false
		res.Reason = "looks like an attempt to change the tutor's instructions"
	}
	return res, nil
}
