package classify

import (
	"strings"

	"github.com/newtron-network/sessioncheck/pkg/session"
)

// Category names a report bucket: a status, a flag or a roll-up
type Category string

const (
	CategoryBroken            Category = "BROKEN"
	CategoryNonUniqueEndpoint Category = "NON_UNIQUE_ENDPOINT"
)

// brokenFor returns the per-protocol BROKEN roll-up (BGP_BROKEN, ...)
func brokenFor(p session.Protocol) Category {
	return Category(strings.ToUpper(string(p)) + "_" + string(CategoryBroken))
}

func nonUniqueFor(p session.Protocol) Category {
	return Category(strings.ToUpper(string(p)) + "_" + string(CategoryNonUniqueEndpoint))
}

// typed prefixes a category with the BGP session type (EBGP_HALF_OPEN)
func typed(t BGPType, c string) Category {
	return Category(strings.ToUpper(string(t)) + "_" + c)
}

// Categories returns every bucket the session belongs to: its primary
// status first, then its flags, then the roll-ups.
func (s *Session) Categories() []Category {
	cats := make([]Category, 0, 4+len(s.Flags))
	cats = append(cats, Category(s.Status))
	for _, f := range s.Flags {
		cats = append(cats, Category(f))
	}

	proto := s.Declaration.Protocol
	switch {
	case s.Status.IsBroken():
		cats = append(cats, CategoryBroken, brokenFor(proto))
		if s.BGPType != BGPTypeNone {
			cats = append(cats,
				typed(s.BGPType, string(CategoryBroken)),
				typed(s.BGPType, string(s.Status)))
		}
	case s.Status == StatusMultipleRemotes:
		cats = append(cats, CategoryNonUniqueEndpoint, nonUniqueFor(proto))
		if s.BGPType != BGPTypeNone {
			cats = append(cats, typed(s.BGPType, string(CategoryNonUniqueEndpoint)))
		}
	}
	return cats
}

// IsPrimary returns true if c names a primary status
func IsPrimary(c Category) bool {
	for _, s := range Statuses {
		if Category(s) == c {
			return true
		}
	}
	return false
}
