// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import "sort"

// Resolver builds dependency level groupings for batch execution.
//
// Description:
//
//	For a requested set of technique types, the resolver considers only
//	dependency edges whose target is also in the requested set; a technique
//	whose dependencies are unregistered or unrequested is treated as having
//	none for that call. The output is an ordered list of groups where every
//	group may run with full internal parallelism once all prior groups have
//	reached a terminal state.
//
// Thread Safety: Stateless apart from the registry reference; safe for
// concurrent use.
type Resolver struct {
	registry *Registry
}

// NewResolver creates a resolver over the given registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve groups the requested techniques by dependency level.
//
// Outputs:
//   - [][]TechniqueType: ordered level groups; techniques within a group are
//     sorted by type for determinism. Duplicates in the request collapse.
//   - error: a *CycleError if the restricted graph contains a cycle.
func (r *Resolver) Resolve(types []TechniqueType) ([][]TechniqueType, error) {
	requested := make(map[TechniqueType]bool, len(types))
	for _, t := range types {
		requested[t] = true
	}

	// Edges restricted to the requested set. An unregistered dependency
	// contributes no edge even when requested: it can never complete, so
	// waiting a level for it would be pointless.
	deps := make(map[TechniqueType][]TechniqueType, len(requested))
	for t := range requested {
		for _, dep := range r.registry.dependenciesOf(t) {
			if requested[dep] && dep != t && r.registry.contains(dep) {
				deps[t] = append(deps[t], dep)
			}
		}
	}

	levels := make(map[TechniqueType]int, len(requested))
	if err := assignLevels(requested, deps, levels); err != nil {
		return nil, err
	}

	maxLevel := 0
	for _, lvl := range levels {
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}

	groups := make([][]TechniqueType, maxLevel+1)
	for t, lvl := range levels {
		groups[lvl] = append(groups[lvl], t)
	}
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i] < group[j] })
	}
	return groups, nil
}

// TopologicalSort returns the requested techniques in dependency order.
//
// Description:
//
//	Flattens the level grouping: every technique appears after all of its
//	in-request dependencies. Fails with a *CycleError on a cycle.
func (r *Resolver) TopologicalSort(types []TechniqueType) ([]TechniqueType, error) {
	groups, err := r.Resolve(types)
	if err != nil {
		return nil, err
	}
	out := make([]TechniqueType, 0, len(types))
	for _, group := range groups {
		out = append(out, group...)
	}
	return out, nil
}

// assignLevels computes level(t) = 1 + max(level(deps)), 0 when none, via
// DFS with an in-progress marker for cycle detection.
func assignLevels(
	requested map[TechniqueType]bool,
	deps map[TechniqueType][]TechniqueType,
	levels map[TechniqueType]int,
) error {
	const (
		unvisited = iota
		inProgress
		done
	)
	marks := make(map[TechniqueType]int, len(requested))
	path := make([]TechniqueType, 0, len(requested))

	var visit func(t TechniqueType) error
	visit = func(t TechniqueType) error {
		switch marks[t] {
		case done:
			return nil
		case inProgress:
			// Revisited a node on the current DFS path: cycle. Report
			// the closing segment of the path.
			start := 0
			for i, p := range path {
				if p == t {
					start = i
					break
				}
			}
			return NewCycleError(append(append([]TechniqueType{}, path[start:]...), t))
		}

		marks[t] = inProgress
		path = append(path, t)

		level := 0
		for _, dep := range deps[t] {
			if err := visit(dep); err != nil {
				return err
			}
			if levels[dep]+1 > level {
				level = levels[dep] + 1
			}
		}

		path = path[:len(path)-1]
		marks[t] = done
		levels[t] = level
		return nil
	}

	// Iterate in sorted order so cycle reports are deterministic.
	ordered := make([]TechniqueType, 0, len(requested))
	for t := range requested {
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	for _, t := range ordered {
		if err := visit(t); err != nil {
			return err
		}
	}
	return nil
}
