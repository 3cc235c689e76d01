// Package filter decides which unit changes are worth an alert.
package filter

import (
	"strings"

	"unitwatch/internal/unit"
)

const DefaultSuffix = ".service"

// TransitionFunc decides from the previous active state (nil on first
// observation) and the new load and active states.
type TransitionFunc func(old *unit.ActiveState, load unit.LoadState, active unit.ActiveState) bool

// Filter selects a change when its unit name ends with Suffix and Transition
// accepts it. The zero value uses DefaultSuffix and Default.
type Filter struct {
	Suffix     string
	Transition TransitionFunc
}

func New(suffix string) Filter {
	return Filter{Suffix: suffix, Transition: Default}
}

func (f Filter) Select(c unit.Change) bool {
	suffix := f.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}
	if !strings.HasSuffix(c.New.Name, suffix) {
		return false
	}
	tr := f.Transition
	if tr == nil {
		tr = Default
	}
	var old *unit.ActiveState
	if c.Old != nil {
		a := c.Old.ActiveState
		old = &a
	}
	return tr(old, c.New.LoadState, c.New.ActiveState)
}

// Default alerts on load errors, on units that are not found unless they are
// also inactive (a removed unit), on failed units and on any state it does not
// recognize. The previous state is not consulted. First match wins.
func Default(_ *unit.ActiveState, load unit.LoadState, active unit.ActiveState) bool {
	switch {
	case load == unit.LoadError:
		return true
	case load == unit.LoadNotFound && active == unit.ActiveInactive:
		return false
	case load == unit.LoadNotFound:
		return true
	case !load.Known():
		return true
	case active == unit.ActiveFailed:
		return true
	case !active.Known():
		return true
	}
	return false
}
