package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Render replaces {{variable}} placeholders in the template with values from
// vars. Substituted values are inserted verbatim and never expanded again.
// Template lines holding only empty optional values are dropped, and runs of
// blank template lines collapse to one.
func Render(template string, vars map[string]string) (string, error) {
	missing := findMissingVars(template, vars)
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	substitute := func(s string) string {
		return variablePattern.ReplaceAllStringFunc(s, func(match string) string {
			return vars[variablePattern.FindStringSubmatch(match)[1]]
		})
	}

	lines := strings.Split(template, "\n")
	kept := make([]string, 0, len(lines))
	prevBlank := false
	for _, line := range lines {
		placeholdersOnly := variablePattern.MatchString(line) &&
			strings.TrimSpace(variablePattern.ReplaceAllString(line, "")) == ""
		if placeholdersOnly && strings.TrimSpace(substitute(line)) == "" {
			continue
		}
		blank := strings.TrimSpace(line) == ""
		if blank && prevBlank {
			continue
		}
		prevBlank = blank
		kept = append(kept, substitute(line))
	}

	return strings.Join(kept, "\n"), nil
}

// ExtractVariables returns a list of variable names found in the template.
func ExtractVariables(template string) []string {
	matches := variablePattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}

func findMissingVars(template string, vars map[string]string) []string {
	var missing []string
	for _, v := range ExtractVariables(template) {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}
