// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the set of registered technique definitions.
//
// Description:
//
//	The Registry is the single owner of TechniqueDefinition values. A type
//	may be registered at most once at any time; re-registration requires an
//	explicit Unregister first. Definitions are immutable after registration
//	except the Enabled flag, which is toggled through SetEnabled.
//
// Thread Safety: Safe for concurrent use via read-write mutex.
type Registry struct {
	mu         sync.RWMutex
	techniques map[TechniqueType]*TechniqueDefinition
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		techniques: make(map[TechniqueType]*TechniqueDefinition),
	}
}

// Register adds a technique definition.
//
// Description:
//
//	Validates the definition, applies registration defaults (priority
//	medium, empty dependency list), and stores a private copy. Every
//	technique starts enabled, even when the definition says otherwise;
//	disable afterwards with SetEnabled. The caller's definition value is
//	not retained.
//
// Outputs:
//   - error: nil on success, ErrUnknownTechniqueType for a type outside the
//     closed enum, ErrNilExecutor for a missing executor,
//     ErrDuplicateTechnique if the type is already registered.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Register(def TechniqueDefinition) error {
	if !def.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTechniqueType, def.Type)
	}
	if def.Executor == nil {
		return fmt.Errorf("%w: %s", ErrNilExecutor, def.Type)
	}

	stored := def
	if stored.Priority == PriorityUnset {
		stored.Priority = PriorityMedium
	}
	if stored.Dependencies == nil {
		stored.Dependencies = []TechniqueType{}
	} else {
		stored.Dependencies = append([]TechniqueType(nil), stored.Dependencies...)
	}
	if stored.DefaultConfig != nil {
		cloned := stored.DefaultConfig.Clone()
		stored.DefaultConfig = &cloned
	}
	stored.Enabled = true

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.techniques[def.Type]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTechnique, def.Type)
	}
	r.techniques[def.Type] = &stored
	return nil
}

// MustRegister registers a definition and panics on error. Startup use only.
func (r *Registry) MustRegister(def TechniqueDefinition) {
	if err := r.Register(def); err != nil {
		panic(fmt.Sprintf("retrieval: failed to register %s: %v", def.Type, err))
	}
}

// Unregister removes a technique and reports whether it was present.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Unregister(t TechniqueType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.techniques[t]
	delete(r.techniques, t)
	return exists
}

// Get retrieves a copy of the definition for t.
//
// The returned value shares the Executor interface with the registry but
// nothing else; mutating it does not affect the registered definition.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Get(t TechniqueType) (TechniqueDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.techniques[t]
	if !exists {
		return TechniqueDefinition{}, false
	}
	return copyDefinition(def), true
}

// List returns the registered definitions sorted by type, optionally
// restricted to enabled ones.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) List(enabledOnly bool) []TechniqueDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TechniqueDefinition, 0, len(r.techniques))
	for _, def := range r.techniques {
		if enabledOnly && !def.Enabled {
			continue
		}
		out = append(out, copyDefinition(def))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// SetEnabled toggles a technique. Unknown types are a no-op.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) SetEnabled(t TechniqueType, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def, exists := r.techniques[t]; exists {
		def.Enabled = enabled
	}
}

// Count returns the number of registered techniques.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.techniques)
}

// EnabledCount returns the number of enabled techniques.
func (r *Registry) EnabledCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, def := range r.techniques {
		if def.Enabled {
			n++
		}
	}
	return n
}

// contains reports whether t is registered. Internal: the resolver filters
// dependency edges against it.
func (r *Registry) contains(t TechniqueType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.techniques[t]
	return exists
}

// dependenciesOf returns the declared dependencies of t, nil if unknown.
// Internal: the resolver reads edges without copying whole definitions.
func (r *Registry) dependenciesOf(t TechniqueType) []TechniqueType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.techniques[t]
	if !exists {
		return nil
	}
	return append([]TechniqueType(nil), def.Dependencies...)
}

func copyDefinition(def *TechniqueDefinition) TechniqueDefinition {
	out := *def
	// make, not append: an empty dependency list must stay an empty slice,
	// not collapse to nil.
	out.Dependencies = make([]TechniqueType, len(def.Dependencies))
	copy(out.Dependencies, def.Dependencies)
	if def.DefaultConfig != nil {
		cloned := def.DefaultConfig.Clone()
		out.DefaultConfig = &cloned
	}
	return out
}
