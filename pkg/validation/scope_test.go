// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidatePeriod(t *testing.T) {
	valid := []string{
		"2025",
		"2025-Q1",
		"2025-Q4",
		"2025-01",
		"2025-12",
		"2025-01-15",
		"2025-01..2025-06",
		"2025-Q1..2025-Q3",
		"2025-01-01..2025-03-31",
	}
	for _, p := range valid {
		if err := ValidatePeriod(p); err != nil {
			t.Errorf("ValidatePeriod(%q): unexpected error: %v", p, err)
		}
	}

	invalid := []string{
		"",
		"Q3",
		"2025-Q5",
		"2025-13",
		"2025-00",
		"2025-01-32",
		"25-Q3",
		"2025-Q3..2025-Q4..2026-Q1",
		"2025'; DROP TABLE transactions;--",
		"2025 OR 1=1",
	}
	for _, p := range invalid {
		if err := ValidatePeriod(p); err == nil {
			t.Errorf("ValidatePeriod(%q): expected error", p)
		}
	}
}

func TestValidateEntity(t *testing.T) {
	valid := []string{"", "ACME Corp", "subsidiary-01", "Holdings.EU", "A"}
	for _, e := range valid {
		if err := ValidateEntity(e); err != nil {
			t.Errorf("ValidateEntity(%q): unexpected error: %v", e, err)
		}
	}

	invalid := []string{
		"-leading-hyphen",
		"entity'; --",
		strings.Repeat("x", 70),
	}
	for _, e := range invalid {
		if err := ValidateEntity(e); err == nil {
			t.Errorf("ValidateEntity(%q): expected error", e)
		}
	}
}
