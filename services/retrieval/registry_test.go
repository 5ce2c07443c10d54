// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"errors"
	"testing"
)

func noopExecutor() TechniqueExecutor {
	return NewFuncExecutor(func(context.Context, ExecutionConfig) (any, error) {
		return "ok", nil
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		r := NewRegistry()
		err := r.Register(TechniqueDefinition{
			Type:     TechniqueSemanticSearch,
			Name:     "Semantic",
			Executor: noopExecutor(),
		})
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		def, ok := r.Get(TechniqueSemanticSearch)
		if !ok {
			t.Fatal("expected technique to be registered")
		}
		if def.Priority != PriorityMedium {
			t.Errorf("priority = %v, want medium", def.Priority)
		}
		if !def.Enabled {
			t.Error("expected technique to be enabled by default")
		}
		if def.Dependencies == nil || len(def.Dependencies) != 0 {
			t.Errorf("dependencies = %v, want empty slice", def.Dependencies)
		}
		if defs := r.List(false); defs[0].Dependencies == nil {
			t.Error("List must preserve the empty dependency slice")
		}
	})

	t.Run("starts enabled even when definition says otherwise", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(TechniqueDefinition{
			Type:     TechniqueQueryExpansion,
			Executor: noopExecutor(),
			Enabled:  false,
		}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if def, _ := r.Get(TechniqueQueryExpansion); !def.Enabled {
			t.Error("registration must start the technique enabled")
		}
	})

	t.Run("rejects duplicate", func(t *testing.T) {
		r := NewRegistry()
		def := TechniqueDefinition{Type: TechniqueKeywordSearch, Executor: noopExecutor()}
		if err := r.Register(def); err != nil {
			t.Fatalf("first Register failed: %v", err)
		}
		err := r.Register(def)
		if !errors.Is(err, ErrDuplicateTechnique) {
			t.Errorf("err = %v, want ErrDuplicateTechnique", err)
		}
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		r := NewRegistry()
		err := r.Register(TechniqueDefinition{Type: "graph_walk", Executor: noopExecutor()})
		if !errors.Is(err, ErrUnknownTechniqueType) {
			t.Errorf("err = %v, want ErrUnknownTechniqueType", err)
		}
	})

	t.Run("rejects nil executor", func(t *testing.T) {
		r := NewRegistry()
		err := r.Register(TechniqueDefinition{Type: TechniqueHybridSearch})
		if !errors.Is(err, ErrNilExecutor) {
			t.Errorf("err = %v, want ErrNilExecutor", err)
		}
	})

	t.Run("re-register after unregister", func(t *testing.T) {
		r := NewRegistry()
		def := TechniqueDefinition{Type: TechniqueRecencyBoost, Executor: noopExecutor()}
		if err := r.Register(def); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if !r.Unregister(TechniqueRecencyBoost) {
			t.Fatal("Unregister should report presence")
		}
		if err := r.Register(def); err != nil {
			t.Errorf("re-register after unregister failed: %v", err)
		}
	})
}

func TestRegistry_Unregister_Absent(t *testing.T) {
	r := NewRegistry()
	if r.Unregister(TechniqueLLMRerank) {
		t.Error("Unregister of absent technique should report false")
	}
}

func TestRegistry_GetCopyIsolation(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(TechniqueDefinition{
		Type:         TechniqueSemanticSearch,
		Executor:     noopExecutor(),
		Dependencies: []TechniqueType{TechniqueKeywordSearch},
	})

	def, _ := r.Get(TechniqueSemanticSearch)
	def.Dependencies[0] = TechniqueHybridSearch
	def.Name = "mutated"

	again, _ := r.Get(TechniqueSemanticSearch)
	if again.Dependencies[0] != TechniqueKeywordSearch {
		t.Error("mutating a returned definition leaked into the registry")
	}
	if again.Name == "mutated" {
		t.Error("mutating a returned definition leaked into the registry")
	}
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(TechniqueDefinition{Type: TechniqueKeywordSearch, Executor: noopExecutor()})
	r.MustRegister(TechniqueDefinition{Type: TechniqueSemanticSearch, Executor: noopExecutor()})
	r.SetEnabled(TechniqueKeywordSearch, false)

	all := r.List(false)
	if len(all) != 2 {
		t.Fatalf("List(false) returned %d, want 2", len(all))
	}
	// Sorted by type.
	if all[0].Type != TechniqueKeywordSearch {
		t.Errorf("first = %s, want keyword_search", all[0].Type)
	}

	enabled := r.List(true)
	if len(enabled) != 1 || enabled[0].Type != TechniqueSemanticSearch {
		t.Errorf("List(true) = %v, want only semantic_search", enabled)
	}
}

func TestRegistry_SetEnabled(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(TechniqueDefinition{Type: TechniqueHybridSearch, Executor: noopExecutor()})

	r.SetEnabled(TechniqueHybridSearch, false)
	def, _ := r.Get(TechniqueHybridSearch)
	if def.Enabled {
		t.Error("expected technique to be disabled")
	}

	// Unknown type is a no-op, not a panic.
	r.SetEnabled(TechniqueLLMRerank, true)

	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
	if r.EnabledCount() != 0 {
		t.Errorf("EnabledCount = %d, want 0", r.EnabledCount())
	}
}
