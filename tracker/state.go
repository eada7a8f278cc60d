package tracker

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/tailored-agentic-units/supervisor/messaging"
)

// UnitView is the tracker's view of one unit. Actual and Desired are nil
// until the unit has reported them.
type UnitView struct {
	ID           string                  `json:"id"`
	Actual       *messaging.ActualState  `json:"actual,omitempty"`
	Desired      *messaging.DesiredState `json:"desired,omitempty"`
	Dependencies []string                `json:"dependencies"`
}

// ActualState returns the reported actual state, or StateUnknown.
func (v UnitView) ActualState() messaging.ActualState {
	if v.Actual == nil {
		return messaging.StateUnknown
	}
	return *v.Actual
}

// DesiredState returns the reported desired state, or DesiredUnset.
func (v UnitView) DesiredState() messaging.DesiredState {
	if v.Desired == nil {
		return messaging.DesiredUnset
	}
	return *v.Desired
}

func (v UnitView) clone() UnitView {
	v.Dependencies = slices.Clone(v.Dependencies)
	return v
}

func (v UnitView) equal(other UnitView) bool {
	return v.ID == other.ID &&
		ptrEqual(v.Actual, other.Actual) &&
		ptrEqual(v.Desired, other.Desired) &&
		slices.Equal(v.Dependencies, other.Dependencies)
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SystemState is an immutable snapshot of every known unit, sorted by id
// with each dependency list sorted.
type SystemState struct {
	units []UnitView
}

// NewSystemState normalizes units into a SystemState. A repeated id keeps
// the last view given for it.
func NewSystemState(units ...UnitView) SystemState {
	byID := make(map[string]UnitView, len(units))
	for _, v := range units {
		v = v.clone()
		slices.Sort(v.Dependencies)
		v.Dependencies = slices.Compact(v.Dependencies)
		byID[v.ID] = v
	}

	views := slices.Collect(maps.Values(byID))
	slices.SortFunc(views, func(a, b UnitView) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return SystemState{units: views}
}

// Units returns a copy of the unit views in id order.
func (s SystemState) Units() []UnitView {
	out := make([]UnitView, len(s.units))
	for i, v := range s.units {
		out[i] = v.clone()
	}
	return out
}

func (s SystemState) Unit(id string) (UnitView, bool) {
	i, found := s.index(id)
	if !found {
		return UnitView{}, false
	}
	return s.units[i].clone(), true
}

func (s SystemState) Len() int {
	return len(s.units)
}

func (s SystemState) Equal(other SystemState) bool {
	return slices.EqualFunc(s.units, other.units, UnitView.equal)
}

func (s SystemState) String() string {
	var sb strings.Builder
	for i, v := range s.units {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s=%s/%s", v.ID, v.ActualState(), v.DesiredState())
		if len(v.Dependencies) > 0 {
			fmt.Fprintf(&sb, "->[%s]", strings.Join(v.Dependencies, ","))
		}
	}
	return sb.String()
}

func (s SystemState) index(id string) (int, bool) {
	return slices.BinarySearchFunc(s.units, id, func(v UnitView, id string) int {
		return cmp.Compare(v.ID, id)
	})
}

// with returns a copy of s in which the view for id has been replaced by
// update applied to the current view, or to an empty one.
func (s SystemState) with(id string, update func(*UnitView)) SystemState {
	i, found := s.index(id)

	units := make([]UnitView, len(s.units), len(s.units)+1)
	copy(units, s.units)

	if !found {
		view := UnitView{ID: id}
		update(&view)
		units = slices.Insert(units, i, view)
		return SystemState{units: units}
	}

	view := units[i]
	update(&view)
	units[i] = view
	return SystemState{units: units}
}

// Fold applies msg to state and returns the resulting snapshot. Messages
// that carry no unit information leave state unchanged.
func Fold(state SystemState, msg *messaging.Message) SystemState {
	if msg == nil {
		return state
	}

	switch msg.Kind {
	case messaging.KindNewUnit:
		nu, ok := msg.NewUnit()
		if !ok || nu.UnitID == "" {
			return state
		}
		if _, exists := state.index(nu.UnitID); exists {
			return state
		}
		return state.with(nu.UnitID, func(*UnitView) {})

	case messaging.KindTransition:
		tr, ok := msg.Transition()
		if !ok || tr.UnitID == "" {
			return state
		}
		current := tr.Current
		return state.with(tr.UnitID, func(v *UnitView) {
			v.Actual = &current
		})

	case messaging.KindDependencies:
		deps, ok := msg.Dependencies()
		if !ok || deps.UnitID == "" {
			return state
		}
		ids := slices.Sorted(maps.Keys(deps.States))
		return state.with(deps.UnitID, func(v *UnitView) {
			v.Dependencies = ids
		})

	case messaging.KindDesiredState:
		d, ok := msg.DesiredStateChanged()
		if !ok || d.UnitID == "" {
			return state
		}
		current := d.Current
		return state.with(d.UnitID, func(v *UnitView) {
			v.Desired = &current
		})
	}

	return state
}
