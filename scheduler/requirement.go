package scheduler

import (
	"strings"

	"github.com/samber/lo"
)

// Requirement is a label expression. Alternatives are separated by "||" and
// each alternative is a conjunction of labels joined by "&&":
//
//	docker && linux || docker-arm
//
// The empty requirement is unconstrained.
type Requirement string

func (r Requirement) IsEmpty() bool {
	return strings.TrimSpace(string(r)) == ""
}

// SatisfiedBy reports whether a worker offering labels can run an item
// carrying this requirement.
func (r Requirement) SatisfiedBy(labels []string) bool {
	if r.IsEmpty() {
		return true
	}

	return lo.SomeBy(r.alternatives(), func(terms []string) bool {
		return len(terms) > 0 && lo.Every(labels, terms)
	})
}

func (r Requirement) alternatives() [][]string {
	return lo.Map(strings.Split(string(r), "||"), func(alternative string, _ int) []string {
		terms := lo.Map(strings.Split(alternative, "&&"), func(term string, _ int) string {
			return strings.TrimSpace(term)
		})
		return lo.Compact(terms)
	})
}

func (r Requirement) String() string {
	return string(r)
}
