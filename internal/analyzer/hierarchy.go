// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package analyzer

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"docsentry/internal/sections"
)

// HierarchyNode is one text section placed in the document outline. Level 0
// nodes are top-level headings or body text; children nest under the
// nearest preceding heading of a lower level.
type HierarchyNode struct {
	SectionID string           `json:"sectionId"`
	Level     int              `json:"level"`
	Heading   bool             `json:"heading"`
	Content   string           `json:"content"`
	Children  []*HierarchyNode `json:"children,omitempty"`
}

var numberedHeading = regexp.MustCompile(`^(\d+(?:\.\d+)*)[.)]?\s+\S`)

// GetTextHierarchy builds an outline of a page's text sections from heading
// markers. Non-text sections are excluded.
func (a *Analyzer) GetTextHierarchy(ctx context.Context, documentID string, pageNumber int) ([]*HierarchyNode, error) {
	secs, err := a.GetSections(ctx, documentID, &pageNumber)
	if err != nil {
		return nil, err
	}

	var roots []*HierarchyNode
	var stack []*HierarchyNode
	for _, s := range secs {
		if s.Type != sections.TypeText {
			continue
		}
		level, heading := headingLevel(s.Content)
		node := &HierarchyNode{
			SectionID: s.ID,
			Level:     level,
			Heading:   heading,
			Content:   s.Content,
		}
		// Pop until the top of the stack is a heading shallower than us.
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.Heading && top.Level < level {
				break
			}
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
		}
		if heading {
			stack = append(stack, node)
		}
	}
	return roots, nil
}

// headingLevel classifies a text block. Headings come in three flavors:
// markdown-style "#" prefixes, numbered headings like "2.1 Scope", and
// short ALL-CAPS lines. Body text sits one level below the deepest heading.
func headingLevel(text string) (level int, heading bool) {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		// Multi-line blocks are body text.
		return bodyLevel, false
	}
	if strings.HasPrefix(line, "#") {
		n := 0
		for n < len(line) && line[n] == '#' {
			n++
		}
		if n < len(line) && line[n] == ' ' {
			return n, true
		}
	}
	if m := numberedHeading.FindStringSubmatch(line); m != nil {
		return strings.Count(m[1], ".") + 1, true
	}
	if len(line) > 0 && len(line) <= 60 && isAllCaps(line) {
		return 1, true
	}
	return bodyLevel, false
}

// bodyLevel is deeper than any recognized heading level so body text always
// nests under the nearest open heading.
const bodyLevel = 99

func isAllCaps(s string) bool {
	sawLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			sawLetter = true
		}
	}
	return sawLetter
}
