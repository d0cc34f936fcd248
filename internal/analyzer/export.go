// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package analyzer

import (
	"context"
	"encoding/json"

	"docsentry/internal/store"
)

// Export is the stable interchange shape for an analyzed document.
type Export struct {
	DocumentID string                `json:"documentId"`
	FileName   string                `json:"fileName"`
	Sections   []store.SectionRecord `json:"sections"`
	Summary    ExportSummary         `json:"summary"`
}

// ExportSummary aggregates section counts for the export envelope.
type ExportSummary struct {
	TotalSections     int            `json:"totalSections"`
	SensitiveSections int            `json:"sensitiveSections"`
	SelectedSections  int            `json:"selectedSections"`
	ByType            map[string]int `json:"byType"`
	Status            string         `json:"analysisStatus"`
}

// ExportJSON serializes a document's full analysis.
func (a *Analyzer) ExportJSON(ctx context.Context, documentID string) ([]byte, error) {
	analysis, err := a.GetAnalysis(ctx, documentID)
	if err != nil {
		return nil, err
	}

	summary := ExportSummary{
		ByType: make(map[string]int),
		Status: string(analysis.Status),
	}
	for _, s := range analysis.Sections {
		summary.TotalSections++
		if s.HasSensitiveContent {
			summary.SensitiveSections++
		}
		if s.Selected {
			summary.SelectedSections++
		}
		summary.ByType[string(s.Type)]++
	}

	return json.MarshalIndent(Export{
		DocumentID: analysis.ID,
		FileName:   analysis.FileName,
		Sections:   analysis.Sections,
		Summary:    summary,
	}, "", "  ")
}
