// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"errors"
	"fmt"
)

// Sentinel errors for the tools package.
var (
	// ErrUnnamedTool indicates a definition with an empty name.
	ErrUnnamedTool = errors.New("tool definition has no name")

	// ErrNilHandler indicates a definition without an implementation.
	ErrNilHandler = errors.New("tool definition has no handler")
)

// DefinitionError reports a parameter-schema violation in a ToolDefinition.
type DefinitionError struct {
	// Tool is the offending tool name.
	Tool string

	// Param is the parameter involved.
	Param string

	// Missing is true when the temporal scope parameter is not listed as
	// required (as opposed to a required parameter that the schema never
	// declares).
	Missing bool
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	if e.Missing {
		return fmt.Sprintf("tool %s: temporal scope parameter %q must be required", e.Tool, e.Param)
	}
	return fmt.Sprintf("tool %s: required parameter %q is not declared in parameters", e.Tool, e.Param)
}
