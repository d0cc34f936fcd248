// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package classifier applies the pattern catalog to text spans and scores
// each match with a confidence value.
package classifier

import (
	"go.uber.org/zap"

	"docsentry/internal/patterns"
)

// DefaultThreshold is the minimum confidence a match needs to be reported
// when the caller does not supply one.
const DefaultThreshold = 0.7

// Hit is a single surviving pattern match within a classified span.
type Hit struct {
	PatternName string             `json:"patternName"`
	Matched     string             `json:"matched"`
	Confidence  float64            `json:"confidence"`
	Category    patterns.Category  `json:"category"`
	Severity    patterns.Severity  `json:"severity"`
	Start       int                `json:"start"`
	End         int                `json:"end"`
}

// Options control a single classification call.
type Options struct {
	// EnabledCategories gates which patterns run. A nil or empty map
	// enables every category.
	EnabledCategories map[patterns.Category]bool

	// Threshold is the minimum confidence for a match to be reported.
	// Zero means DefaultThreshold.
	Threshold float64
}

// Result is the outcome of classifying one text span.
type Result struct {
	Hits []Hit
}

// HasSensitiveContent reports whether at least one hit survived the threshold.
func (r Result) HasSensitiveContent() bool { return len(r.Hits) > 0 }

// PatternNames returns the distinct pattern names across all hits.
func (r Result) PatternNames() []string {
	seen := make(map[string]bool, len(r.Hits))
	var names []string
	for _, h := range r.Hits {
		if !seen[h.PatternName] {
			seen[h.PatternName] = true
			names = append(names, h.PatternName)
		}
	}
	return names
}

// MaxConfidence returns the highest hit confidence, or 0 with no hits.
func (r Result) MaxConfidence() float64 {
	max := 0.0
	for _, h := range r.Hits {
		if h.Confidence > max {
			max = h.Confidence
		}
	}
	return max
}

// Classifier scans text against a pattern catalog. Construct with New and
// share freely; it holds no per-call state.
type Classifier struct {
	catalog *patterns.Catalog
	scorer  Scorer
	logger  *zap.Logger
}

// New creates a classifier over the given catalog. A nil scorer falls back
// to the HeuristicScorer and a nil logger to a no-op logger.
func New(catalog *patterns.Catalog, scorer Scorer, logger *zap.Logger) *Classifier {
	if scorer == nil {
		scorer = HeuristicScorer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{catalog: catalog, scorer: scorer, logger: logger}
}

// Classify scans text with every enabled pattern and returns the hits whose
// confidence meets the threshold. All non-overlapping occurrences of each
// pattern are reported; when several patterns match the same substring every
// match is recorded. A pattern that fails mid-scan is skipped and the
// remaining patterns still run.
func (c *Classifier) Classify(text string, opts Options) Result {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	var hits []Hit
	for _, p := range c.catalog.List() {
		if !categoryEnabled(opts.EnabledCategories, p.Category) {
			continue
		}
		found, err := c.apply(p, text, threshold)
		if err != nil {
			c.logger.Warn("pattern application failed, skipping pattern",
				zap.String("pattern", p.Name),
				zap.Error(err))
			continue
		}
		hits = append(hits, found...)
	}
	return Result{Hits: hits}
}

// apply runs a single pattern end to end, converting a panic from a
// misbehaving regex or scorer into an error so one bad pattern cannot take
// down the scan.
func (c *Classifier) apply(p patterns.RedactionPattern, text string, threshold float64) (hits []Hit, err error) {
	defer func() {
		if r := recover(); r != nil {
			hits = nil
			err = &PatternError{Pattern: p.Name, Cause: r}
		}
	}()

	for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
		matched := text[loc[0]:loc[1]]
		confidence := c.scorer.Score(p, matched)
		if confidence < threshold {
			continue
		}
		hits = append(hits, Hit{
			PatternName: p.Name,
			Matched:     matched,
			Confidence:  confidence,
			Category:    p.Category,
			Severity:    p.Severity,
			Start:       loc[0],
			End:         loc[1],
		})
	}
	return hits, nil
}

func categoryEnabled(enabled map[patterns.Category]bool, c patterns.Category) bool {
	if len(enabled) == 0 {
		return true
	}
	return enabled[c]
}
