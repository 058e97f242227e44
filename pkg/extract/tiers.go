package extract

import (
	"iter"
	"slices"
	"strings"
)

type tier struct {
	name    string
	matches []string
}

// tierList is ordered from most to least advanced. The last entry is the
// unknown sentinel and carries no matches.
type tierList struct {
	tiers     []tier
	substring bool
}

func (l tierList) unknown() string {
	return l.tiers[len(l.tiers)-1].name
}

// resolve returns the first tier any status matches, so one advanced
// sub-unit outranks any number of lagging ones.
func (l tierList) resolve(statuses iter.Seq[string]) string {
	folded := slices.Collect(func(yield func(string) bool) {
		for s := range statuses {
			if !yield(strings.ToLower(s)) {
				return
			}
		}
	})
	for _, t := range l.tiers {
		for _, s := range folded {
			if l.match(t, s) {
				return t.name
			}
		}
	}
	return l.unknown()
}

func (l tierList) match(t tier, s string) bool {
	for _, m := range t.matches {
		if l.substring && strings.Contains(s, m) {
			return true
		}
		if !l.substring && s == m {
			return true
		}
	}
	return false
}
