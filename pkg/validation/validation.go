// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation wraps go-playground/validator behind a shared,
// concurrency-safe instance so every component validates structs against
// the same tag rules.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared instance; it caches struct metadata and is safe
// for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct validates s against its `validate` tags.
//
// Outputs:
//   - error: nil when valid; otherwise a single error naming every failing
//     field and the rule it broke.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		parts[i] = fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag())
	}
	return fmt.Errorf("validation failed: %s", strings.Join(parts, "; "))
}

// Var validates a single value against a tag expression, e.g.
// Var(limit, "gte=0").
func Var(v any, tag string) error {
	return validate.Var(v, tag)
}
