// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactor

import "docsentry/internal/patterns"

// Confidence bucket boundaries.
const (
	highConfidence   = 0.8
	mediumConfidence = 0.6
)

// Summary holds the aggregate counts for a redaction run. It is always
// derived from the area list via Summarize, never stored on its own, so it
// cannot drift from its source.
type Summary struct {
	TotalRedactions int `json:"totalRedactions"`

	PIICount       int `json:"piiCount"`
	FinancialCount int `json:"financialCount"`
	MedicalCount   int `json:"medicalCount"`
	LegalCount     int `json:"legalCount"`
	OtherCount     int `json:"otherCount"`

	HighConfidenceCount   int `json:"highConfidenceCount"`
	MediumConfidenceCount int `json:"mediumConfidenceCount"`
	LowConfidenceCount    int `json:"lowConfidenceCount"`
}

// Summarize recomputes the summary from an area list.
func Summarize(areas []RedactedArea) Summary {
	var s Summary
	s.TotalRedactions = len(areas)
	for _, a := range areas {
		switch a.Category {
		case patterns.CategoryPII:
			s.PIICount++
		case patterns.CategoryFinancial:
			s.FinancialCount++
		case patterns.CategoryMedical:
			s.MedicalCount++
		case patterns.CategoryLegal:
			s.LegalCount++
		default:
			s.OtherCount++
		}

		switch {
		case a.Confidence >= highConfidence:
			s.HighConfidenceCount++
		case a.Confidence >= mediumConfidence:
			s.MediumConfidenceCount++
		default:
			s.LowConfidenceCount++
		}
	}
	return s
}

// CategoryCount returns the per-category count from the summary.
func (s Summary) CategoryCount(c patterns.Category) int {
	switch c {
	case patterns.CategoryPII:
		return s.PIICount
	case patterns.CategoryFinancial:
		return s.FinancialCount
	case patterns.CategoryMedical:
		return s.MedicalCount
	case patterns.CategoryLegal:
		return s.LegalCount
	default:
		return s.OtherCount
	}
}
