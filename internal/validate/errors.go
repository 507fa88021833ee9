package validate

import "strings"

// Error aggregates configuration validation issues so a bench reports
// everything wrong with its plan at once instead of failing issue by issue.
type Error struct {
	Issues []string
}

func (e *Error) Error() string {
	if len(e.Issues) == 0 {
		return "configuration validation failed"
	}
	return "configuration validation failed: " + strings.Join(e.Issues, "; ")
}

func (e *Error) Add(issue string) {
	if strings.TrimSpace(issue) == "" {
		return
	}
	e.Issues = append(e.Issues, issue)
}

func (e *Error) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}
