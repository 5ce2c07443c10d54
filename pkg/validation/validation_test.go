// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"strings"
	"testing"
)

type searchRequest struct {
	Query string  `validate:"required"`
	Limit int     `validate:"gte=0,lte=100"`
	Alpha float64 `validate:"gte=0,lte=1"`
}

func TestStruct_Valid(t *testing.T) {
	req := searchRequest{Query: "aleutian low", Limit: 10, Alpha: 0.5}
	if err := Struct(req); err != nil {
		t.Errorf("Struct() = %v, want nil", err)
	}
}

func TestStruct_CollectsEveryFailure(t *testing.T) {
	req := searchRequest{Limit: 500, Alpha: 2}
	err := Struct(req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	if !strings.HasPrefix(msg, "validation failed: ") {
		t.Errorf("unexpected prefix: %q", msg)
	}
	for _, want := range []string{`Query: failed "required"`, `Limit: failed "lte"`, `Alpha: failed "lte"`} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestVar(t *testing.T) {
	if err := Var(5, "gte=0"); err != nil {
		t.Errorf("Var(5, gte=0) = %v, want nil", err)
	}
	if err := Var(-1, "gte=0"); err == nil {
		t.Error("Var(-1, gte=0) should fail")
	}
}
