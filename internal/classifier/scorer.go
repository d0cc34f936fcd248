// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package classifier

import (
	"unicode"

	"docsentry/internal/patterns"
)

// Scorer assigns a confidence in [0,1] to a single pattern match. The scoring
// strategy is pluggable so a statistical model can replace the additive
// heuristic without touching extraction or persistence code.
type Scorer interface {
	Score(p patterns.RedactionPattern, matched string) float64
}

// HeuristicScorer is the default additive point scorer.
//
// Base 0.5, severity adds +0.3 (high), +0.1 (medium) or -0.1 (low), matches
// longer than 5 characters add +0.1, and a match mixing digits and letters
// adds +0.1. The result is clamped to [0,1].
type HeuristicScorer struct{}

// Score implements Scorer.
func (HeuristicScorer) Score(p patterns.RedactionPattern, matched string) float64 {
	confidence := 0.5

	switch p.Severity {
	case patterns.SeverityHigh:
		confidence += 0.3
	case patterns.SeverityMedium:
		confidence += 0.1
	case patterns.SeverityLow:
		confidence -= 0.1
	}

	if len(matched) > 5 {
		confidence += 0.1
	}
	if hasDigit(matched) && hasLetter(matched) {
		confidence += 0.1
	}

	if confidence > 1.0 {
		confidence = 1.0
	} else if confidence < 0.0 {
		confidence = 0.0
	}
	return confidence
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
