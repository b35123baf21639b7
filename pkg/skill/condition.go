package skill

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Condition is an interned symbolic fact token such as "tip_attached" or
// "liquid_aspirated". The engine checks that tokens are well formed and
// matches them exactly; it never interprets their semantic truth.
type Condition string

const maxConditionLen = 64

var conditionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ParseCondition validates and interns a condition token.
func ParseCondition(s string) (Condition, error) {
	c := Condition(strings.TrimSpace(s))
	if c == "" {
		return "", fmt.Errorf("condition token is empty")
	}
	if !c.Valid() {
		return "", fmt.Errorf("invalid condition token %q (want %s)", s, conditionPattern.String())
	}
	return c, nil
}

// Valid reports whether c is a well-formed token.
func (c Condition) Valid() bool {
	if c == "" || utf8.RuneCountInString(string(c)) > maxConditionLen {
		return false
	}
	return conditionPattern.MatchString(string(c))
}

func (c Condition) String() string {
	return string(c)
}

// ContainsCondition reports whether token appears in list. Matching is
// exact; tokens form a closed vocabulary per skill.
func ContainsCondition(list []Condition, token Condition) bool {
	for _, c := range list {
		if c == token {
			return true
		}
	}
	return false
}
