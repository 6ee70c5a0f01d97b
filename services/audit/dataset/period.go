// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PriorPeriod derives the period label immediately preceding the given one.
//
// Description:
//
//	Supports the single-unit period grammar: years ("2025"), quarters
//	("2025-Q3"), months ("2025-07"), and days ("2025-07-15"). Quarter and
//	month labels roll over into the prior year. Range labels ("a..b") have
//	no single predecessor and are rejected.
//
// Outputs:
//
//	string - The preceding period label, in the same unit.
//	error - Non-nil for range scopes or unrecognized labels.
func PriorPeriod(period string) (string, error) {
	if strings.Contains(period, "..") {
		return "", fmt.Errorf("prior period undefined for range scope %q", period)
	}

	switch len(period) {
	case 4: // year
		year, err := strconv.Atoi(period)
		if err != nil || year <= 1 {
			return "", fmt.Errorf("prior period undefined for %q", period)
		}
		return fmt.Sprintf("%04d", year-1), nil

	case 7:
		if period[4] == '-' && period[5] == 'Q' {
			year, err := strconv.Atoi(period[:4])
			quarter := int(period[6] - '0')
			if err != nil || quarter < 1 || quarter > 4 {
				return "", fmt.Errorf("prior period undefined for %q", period)
			}
			if quarter == 1 {
				return fmt.Sprintf("%04d-Q4", year-1), nil
			}
			return fmt.Sprintf("%04d-Q%d", year, quarter-1), nil
		}
		t, err := time.Parse("2006-01", period)
		if err != nil {
			return "", fmt.Errorf("prior period undefined for %q", period)
		}
		return t.AddDate(0, -1, 0).Format("2006-01"), nil

	case 10: // day
		t, err := time.Parse("2006-01-02", period)
		if err != nil {
			return "", fmt.Errorf("prior period undefined for %q", period)
		}
		return t.AddDate(0, 0, -1).Format("2006-01-02"), nil
	}
	return "", fmt.Errorf("prior period undefined for %q", period)
}
