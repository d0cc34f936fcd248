// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package patterns

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Severity indicates how strongly a pattern match suggests sensitive data.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Category groups patterns by the kind of data they detect.
type Category string

const (
	CategoryPII       Category = "pii"
	CategoryFinancial Category = "financial"
	CategoryMedical   Category = "medical"
	CategoryLegal     Category = "legal"
	CategoryOther     Category = "other"
)

// Categories lists every known category in a stable order.
func Categories() []Category {
	return []Category{CategoryPII, CategoryFinancial, CategoryMedical, CategoryLegal, CategoryOther}
}

// PlaceholderFor returns the replacement text used when content of the given
// category is redacted. Placeholders contain no digits so they can never
// re-match a registered pattern.
func PlaceholderFor(c Category) string {
	return "[" + strings.ToUpper(string(c)) + "_REDACTED]"
}

// RedactionPattern is a single named detector. Immutable once registered.
type RedactionPattern struct {
	Name     string
	Regex    *regexp.Regexp
	Severity Severity
	Category Category
}

// New compiles expr and returns a pattern ready for registration.
func New(name, expr string, severity Severity, category Category) (RedactionPattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return RedactionPattern{}, fmt.Errorf("pattern %s: %w", name, err)
	}
	return RedactionPattern{Name: name, Regex: re, Severity: severity, Category: category}, nil
}

// MustNew is New that panics on a bad expression. For built-in patterns.
func MustNew(name, expr string, severity Severity, category Category) RedactionPattern {
	p, err := New(name, expr, severity, category)
	if err != nil {
		panic(err)
	}
	return p
}

// Catalog is a mutable, name-keyed set of redaction patterns. Safe for
// concurrent use. Registering a pattern under an existing name replaces the
// previous entry; last write wins.
type Catalog struct {
	mu       sync.RWMutex
	patterns map[string]RedactionPattern
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{patterns: make(map[string]RedactionPattern)}
}

// Register adds or replaces a pattern by name.
func (c *Catalog) Register(p RedactionPattern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns[p.Name] = p
}

// Unregister removes a pattern by name and reports whether it existed.
func (c *Catalog) Unregister(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.patterns[name]
	delete(c.patterns, name)
	return ok
}

// Lookup returns the pattern registered under name.
func (c *Catalog) Lookup(name string) (RedactionPattern, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.patterns[name]
	return p, ok
}

// List returns all registered patterns sorted by name so that scan results
// are deterministic regardless of registration order.
func (c *Catalog) List() []RedactionPattern {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]RedactionPattern, 0, len(c.patterns))
	for _, p := range c.patterns {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered patterns.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.patterns)
}
