// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// generate_tool_docs generates a markdown reference for the built-in
// analysis tools from the live registry definitions.
//
// Usage:
//
//	go run scripts/generate_tool_docs.go > docs/tool_reference.md
//
// The generated documentation includes the full tool inventory grouped
// by ledger category, each tool's parameters, and summary statistics.
// Because it reads the same definitions the engine registers at startup,
// it can never drift from the code.
package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AuditPilot/services/audit/tools"
)

func main() {
	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, nil)

	schemas := registry.Schemas()
	sort.Slice(schemas, func(i, j int) bool {
		if schemas[i].Category != schemas[j].Category {
			return schemas[i].Category < schemas[j].Category
		}
		return schemas[i].Name < schemas[j].Name
	})

	fmt.Println("# Analysis Tool Reference")
	fmt.Println()
	fmt.Printf("Generated %s from the built-in registry. Do not edit by hand.\n", time.Now().Format("2006-01-02"))
	fmt.Println()
	fmt.Printf("Total tools: %d\n", len(schemas))

	var category tools.Category
	for _, schema := range schemas {
		if schema.Category != category {
			category = schema.Category
			fmt.Printf("\n## %s\n\n", strings.ToUpper(category.String()[:1])+category.String()[1:])
		}

		fmt.Printf("### `%s`\n\n", schema.Name)
		fmt.Printf("%s\n\n", schema.Description)

		if len(schema.Parameters.Properties) == 0 {
			continue
		}
		fmt.Println("| Parameter | Type | Required | Description |")
		fmt.Println("|-----------|------|----------|-------------|")

		names := make([]string, 0, len(schema.Parameters.Properties))
		for name := range schema.Parameters.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		required := make(map[string]bool, len(schema.Parameters.Required))
		for _, name := range schema.Parameters.Required {
			required[name] = true
		}

		for _, name := range names {
			def := schema.Parameters.Properties[name]
			req := "no"
			if required[name] {
				req = "yes"
			}
			fmt.Printf("| `%s` | %s | %s | %s |\n", name, def.Type, req, def.Description)
		}
		fmt.Println()
	}
}
