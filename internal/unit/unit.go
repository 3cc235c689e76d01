// Package unit holds the systemd unit model shared by the state store, the
// change filter and the notifiers.
package unit

// Record is one entry of a ListUnits response, exactly as the status source
// reported it.
type Record struct {
	Name        string
	Description string
	LoadState   string
	ActiveState string
	SubState    string
	Following   string
}

// LoadState is the systemd load state of a unit.
//
// Values outside the known set are kept verbatim; Known reports false for them.
type LoadState string

const (
	LoadLoaded   LoadState = "loaded"
	LoadError    LoadState = "error"
	LoadMasked   LoadState = "masked"
	LoadNotFound LoadState = "not-found"
)

// ParseLoadState never fails: unrecognized strings become an unknown state
// holding the original text.
func ParseLoadState(s string) LoadState { return LoadState(s) }

func (s LoadState) Known() bool {
	switch s {
	case LoadLoaded, LoadError, LoadMasked, LoadNotFound:
		return true
	}
	return false
}

func (s LoadState) String() string {
	if s.Known() {
		return string(s)
	}
	return "unknown: " + string(s)
}

// ActiveState is the systemd active state of a unit.
//
// Values outside the known set are kept verbatim; Known reports false for them.
type ActiveState string

const (
	ActiveActive       ActiveState = "active"
	ActiveReloading    ActiveState = "reloading"
	ActiveInactive     ActiveState = "inactive"
	ActiveFailed       ActiveState = "failed"
	ActiveActivating   ActiveState = "activating"
	ActiveDeactivating ActiveState = "deactivating"
)

// ParseActiveState never fails: unrecognized strings become an unknown state
// holding the original text.
func ParseActiveState(s string) ActiveState { return ActiveState(s) }

func (s ActiveState) Known() bool {
	switch s {
	case ActiveActive, ActiveReloading, ActiveInactive, ActiveFailed, ActiveActivating, ActiveDeactivating:
		return true
	}
	return false
}

func (s ActiveState) String() string {
	if s.Known() {
		return string(s)
	}
	return "unknown: " + string(s)
}

// Status is the part of a unit record that change detection looks at.
// Two statuses are equal (==) iff every field matches.
type Status struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	LoadState   LoadState   `json:"load_state"`
	ActiveState ActiveState `json:"active_state"`
	SubState    string      `json:"sub_state"`
}

// FromRecord parses a raw record into a Status.
func FromRecord(r Record) Status {
	return Status{
		Name:        r.Name,
		Description: r.Description,
		LoadState:   ParseLoadState(r.LoadState),
		ActiveState: ParseActiveState(r.ActiveState),
		SubState:    r.SubState,
	}
}

// FromRecords parses a whole snapshot, keeping order.
func FromRecords(rs []Record) []Status {
	out := make([]Status, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromRecord(r))
	}
	return out
}

// Change pairs a unit's previous and current status.
// Old is nil the first time a unit name is observed.
type Change struct {
	Old *Status
	New Status
}

// IsNew reports whether this is the first observation of the unit.
func (c Change) IsNew() bool { return c.Old == nil }
