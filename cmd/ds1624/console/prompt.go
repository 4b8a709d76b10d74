package console

import (
	"slices"
	"strings"

	"github.com/chzyer/readline"
)

const (
	Yes = "y"
	No  = "n"
)

// YesOrNo asks a question defaulting to no.
func YesOrNo(question string) (string, error) {
	return Prompt(question, No, Yes)
}

// Prompt reads one line. With constraints, the answer must be one of them and
// the first one is returned on empty or unmatched input.
func Prompt(question string, constraints ...string) (string, error) {
	if len(constraints) > 0 {
		choices := slices.Clone(constraints)
		choices[0] = strings.ToUpper(choices[0])
		question = question + " [" + strings.Join(choices, "/") + "]: "
	}
	rl, err := readline.New(question)
	if err != nil {
		return "", err
	}
	defer rl.Close()
	response, err := rl.Readline()
	if err != nil {
		return "", err
	}
	if len(constraints) == 0 {
		return response, nil
	}
	return match(response, constraints), nil
}

func match(response string, constraints []string) string {
	normalized := strings.ToLower(strings.TrimSpace(response))
	if slices.Contains(constraints, normalized) {
		return normalized
	}
	return constraints[0]
}
