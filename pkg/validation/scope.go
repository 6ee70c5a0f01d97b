// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that reach
// database queries. Scope labels arrive from the command line and are
// threaded into every analysis tool, so they are validated once at
// session creation rather than at each query site.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// periodUnitPattern matches one period component.
// Allows: a year (2025), a quarter (2025-Q3), a month (2025-01),
// or a date (2025-01-15).
var periodUnitPattern = regexp.MustCompile(`^\d{4}(-Q[1-4]|-(0[1-9]|1[0-2])(-(0[1-9]|[12]\d|3[01]))?)?$`)

// entityPattern matches legal-entity identifiers.
// Allows: letters, digits, spaces, dots, underscores, hyphens.
// Max length: 64 characters.
var entityPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._\-]{0,63}$`)

// ValidatePeriod validates an audit period label.
//
// Valid periods are a single unit or an inclusive range joined by "..":
//   - 2025
//   - 2025-Q3
//   - 2025-01
//   - 2025-01-15
//   - 2025-01..2025-06
//
// Returns an error if the period is empty or malformed.
//
// Example:
//
//	if err := validation.ValidatePeriod(period); err != nil {
//	    return nil, fmt.Errorf("invalid period: %w", err)
//	}
func ValidatePeriod(period string) error {
	if period == "" {
		return fmt.Errorf("period cannot be empty")
	}

	units := strings.Split(period, "..")
	if len(units) > 2 {
		return fmt.Errorf("invalid period %q: at most one range separator", period)
	}
	for _, unit := range units {
		if !periodUnitPattern.MatchString(unit) {
			return fmt.Errorf("invalid period %q: expected a year, quarter, month, date, or range like 2025-01..2025-06", period)
		}
	}
	return nil
}

// ValidateEntity validates an optional legal-entity identifier.
//
// An empty entity is valid and means no entity restriction.
func ValidateEntity(entity string) error {
	if entity == "" {
		return nil
	}
	if !entityPattern.MatchString(entity) {
		return fmt.Errorf("invalid entity %q: must be 1-64 alphanumeric chars, spaces, dots, underscores, or hyphens", entity)
	}
	return nil
}
