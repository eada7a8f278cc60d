package supervisor

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tailored-agentic-units/supervisor/messaging"
)

// Validate reports every problem in the unit declarations: empty or
// duplicate ids, unknown desired states, dependencies on unknown units or
// on the unit itself, and dependency cycles.
func (c *Config) Validate() error {
	if len(c.Units) == 0 {
		return ErrNoUnits
	}

	var errs []error
	known := make(map[string]bool, len(c.Units))

	for i, spec := range c.Units {
		switch {
		case spec.ID == "":
			errs = append(errs, fmt.Errorf("%w: units[%d]", ErrEmptyUnitID, i))
			continue
		case known[spec.ID]:
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateUnit, spec.ID))
		}
		known[spec.ID] = true

		if _, err := messaging.ParseDesiredState(strings.ToUpper(spec.Desired)); err != nil {
			errs = append(errs, fmt.Errorf("%w: unit %s: %q", ErrInvalidDesired, spec.ID, spec.Desired))
		}
	}

	for _, spec := range c.Units {
		for _, dep := range spec.DependsOn {
			switch {
			case dep == spec.ID:
				errs = append(errs, fmt.Errorf("%w: %s", ErrSelfDependency, spec.ID))
			case !known[dep]:
				errs = append(errs, fmt.Errorf("%w: unit %s depends on %s", ErrUnknownDependency, spec.ID, dep))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if cycle := c.findCycle(); cycle != nil {
		return fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(cycle, " -> "))
	}
	return nil
}

// graph returns the dependency edges keyed by unit id, with ids and edges
// sorted so traversals are deterministic.
func (c *Config) graph() (map[string][]string, []string) {
	edges := make(map[string][]string, len(c.Units))
	ids := make([]string, 0, len(c.Units))
	for _, spec := range c.Units {
		deps := slices.Clone(spec.DependsOn)
		slices.Sort(deps)
		edges[spec.ID] = slices.Compact(deps)
		ids = append(ids, spec.ID)
	}
	slices.Sort(ids)
	return edges, ids
}

// findCycle returns the first dependency cycle found by depth-first search
// as a path that starts and ends with the same unit.
func (c *Config) findCycle() []string {
	edges, ids := c.graph()

	const (
		unvisited = iota
		visiting
		visited
	)
	marks := make(map[string]int, len(ids))

	var path []string
	var visit func(id string) []string
	visit = func(id string) []string {
		switch marks[id] {
		case visiting:
			start := slices.Index(path, id)
			return append(slices.Clone(path[start:]), id)
		case visited:
			return nil
		}

		marks[id] = visiting
		path = append(path, id)
		for _, dep := range edges[id] {
			if cycle := visit(dep); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		marks[id] = visited
		return nil
	}

	for _, id := range ids {
		if marks[id] == unvisited {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// StartOrder returns the unit ids ordered so that every unit follows its
// dependencies. Ties are broken by id. The config must be valid.
func (c *Config) StartOrder() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	edges, ids := c.graph()
	done := make(map[string]bool, len(ids))
	order := make([]string, 0, len(ids))

	var visit func(id string)
	visit = func(id string) {
		if done[id] {
			return
		}
		done[id] = true
		for _, dep := range edges[id] {
			visit(dep)
		}
		order = append(order, id)
	}

	for _, id := range ids {
		visit(id)
	}
	return order, nil
}
