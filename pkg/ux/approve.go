// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
)

// ApprovalItem is one hypothesis offered at the approval checkpoint.
type ApprovalItem struct {
	ID          string
	Title       string
	Description string
	Rationale   string
}

// ApprovalDecision records which hypotheses the auditor approved and
// any feedback to thread into subsequent reasoning.
type ApprovalDecision struct {
	// ApprovedIDs lists the approved hypothesis IDs. An empty slice
	// means the auditor rejected everything.
	ApprovedIDs []string

	// Feedback is optional free-text guidance from the auditor.
	Feedback string
}

// PromptApproval collects the auditor's approval decision.
//
// Description:
//
//	In an interactive terminal this shows a multi-select form with all
//	hypotheses preselected plus an optional feedback field. In a
//	non-interactive context it falls back to a line-oriented prompt on
//	stdin so the checkpoint still works under redirection.
func PromptApproval(items []ApprovalItem) (ApprovalDecision, error) {
	if !IsInteractive() {
		return promptApprovalPlain(os.Stdin, os.Stdout, items)
	}
	return promptApprovalForm(items)
}

func promptApprovalForm(items []ApprovalItem) (ApprovalDecision, error) {
	options := make([]huh.Option[string], 0, len(items))
	for _, item := range items {
		label := fmt.Sprintf("%s: %s", item.ID, item.Title)
		options = append(options, huh.NewOption(label, item.ID).Selected(true))
	}

	var approved []string
	var feedback string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Approve hypotheses to explore").
				Description("Deselect any hypothesis the engine should not spend budget on.").
				Options(options...).
				Value(&approved),
			huh.NewText().
				Title("Feedback (optional)").
				Description("Guidance for the remaining phases, e.g. vendors or accounts to focus on.").
				Value(&feedback),
		),
	)
	if err := form.Run(); err != nil {
		return ApprovalDecision{}, fmt.Errorf("approval form: %w", err)
	}
	if approved == nil {
		approved = []string{}
	}

	return ApprovalDecision{ApprovedIDs: approved, Feedback: strings.TrimSpace(feedback)}, nil
}

// promptApprovalPlain reads an approval decision from a line-oriented
// stream. The first line is a comma-separated list of hypothesis IDs,
// "all", or "none"; the second line is optional feedback.
func promptApprovalPlain(r io.Reader, w io.Writer, items []ApprovalItem) (ApprovalDecision, error) {
	fmt.Fprintln(w, "Hypotheses awaiting approval:")
	for _, item := range items {
		fmt.Fprintf(w, "  %s  %s\n", item.ID, item.Title)
		if item.Rationale != "" {
			fmt.Fprintf(w, "        %s\n", item.Rationale)
		}
	}
	fmt.Fprint(w, "Approve which? (all / none / comma-separated IDs): ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return ApprovalDecision{}, fmt.Errorf("read approval: %w", err)
		}
		return ApprovalDecision{}, io.ErrUnexpectedEOF
	}
	choice := strings.TrimSpace(scanner.Text())

	known := make(map[string]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}

	var approved []string
	switch strings.ToLower(choice) {
	case "all", "":
		for _, item := range items {
			approved = append(approved, item.ID)
		}
	case "none":
		approved = []string{}
	default:
		approved = []string{}
		for _, id := range strings.Split(choice, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if !known[id] {
				return ApprovalDecision{}, fmt.Errorf("unknown hypothesis ID %q", id)
			}
			approved = append(approved, id)
		}
	}

	fmt.Fprint(w, "Feedback (optional, blank to skip): ")
	var feedback string
	if scanner.Scan() {
		feedback = strings.TrimSpace(scanner.Text())
	}

	return ApprovalDecision{ApprovedIDs: approved, Feedback: feedback}, nil
}
