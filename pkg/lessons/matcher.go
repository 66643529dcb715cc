package lessons

import "strings"

// MatchKind selects how learner input is compared against a step
type MatchKind int

const (
	// MatchNone accepts any input; used for closing narrative steps
	MatchNone MatchKind = iota
	// MatchExact requires the trimmed input to equal the expected command
	MatchExact
	// MatchPrefix requires the trimmed input to start with the expected command
	MatchPrefix
	// MatchChoice compares against a multiple-choice letter, case-insensitively
	MatchChoice
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchPrefix:
		return "prefix"
	case MatchChoice:
		return "choice"
	default:
		return "none"
	}
}

// Matcher decides whether an input line satisfies a step
type Matcher struct {
	Kind MatchKind
	Want string
}

// Match reports whether raw satisfies the matcher
func (m Matcher) Match(raw string) bool {
	input := strings.TrimSpace(raw)
	switch m.Kind {
	case MatchNone:
		return true
	case MatchExact:
		return input == m.Want
	case MatchPrefix:
		return strings.HasPrefix(input, m.Want)
	case MatchChoice:
		return strings.EqualFold(input, m.Want)
	default:
		return false
	}
}
