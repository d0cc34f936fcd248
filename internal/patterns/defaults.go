// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package patterns

// DefaultCatalog returns a catalog preloaded with the built-in detectors.
// The regexes favor recall over precision: a match here triggers review, not
// an automatic action, so false positives are preferred over misses.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, p := range defaultPatterns() {
		c.Register(p)
	}
	return c
}

func defaultPatterns() []RedactionPattern {
	return []RedactionPattern{
		// PII
		MustNew("email",
			`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			SeverityHigh, CategoryPII),
		MustNew("phone_us",
			`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`,
			SeverityMedium, CategoryPII),
		MustNew("ssn",
			`\b\d{3}-\d{2}-\d{4}\b`,
			SeverityHigh, CategoryPII),
		MustNew("passport",
			`\b[A-Z]{1,2}\d{7,9}\b`,
			SeverityMedium, CategoryPII),
		MustNew("ip_address",
			`\b(?:\d{1,3}\.){3}\d{1,3}\b`,
			SeverityLow, CategoryPII),
		MustNew("street_address",
			`(?i)\b\d{1,5}\s+[A-Za-z0-9.\s]{2,30}\s(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|court|ct|way)\b`,
			SeverityLow, CategoryPII),

		// Financial
		MustNew("credit_card",
			`\b(?:4\d{3}|5[1-5]\d{2}|3[47]\d{2}|6(?:011|5\d{2}))[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{1,4}\b`,
			SeverityHigh, CategoryFinancial),
		MustNew("iban",
			`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`,
			SeverityHigh, CategoryFinancial),
		MustNew("bank_account",
			`(?i)\b(?:account|acct)\s*(?:no|number|#)?[:.\s]\s*\d{6,17}\b`,
			SeverityMedium, CategoryFinancial),
		MustNew("routing_number",
			`(?i)\b(?:routing|aba)\s*(?:no|number|#)?[:.\s]\s*\d{9}\b`,
			SeverityMedium, CategoryFinancial),

		// Medical
		MustNew("medical_record_number",
			`(?i)\bmrn\s*[:#]?\s*\d{6,10}\b`,
			SeverityHigh, CategoryMedical),
		MustNew("health_insurance_id",
			`(?i)\b(?:member|policy|subscriber)\s*(?:id|no|number)\s*[:#]?\s*[A-Z0-9][A-Z0-9-]{5,14}\b`,
			SeverityMedium, CategoryMedical),
		MustNew("npi",
			`(?i)\bnpi\s*[:#]?\s*\d{10}\b`,
			SeverityMedium, CategoryMedical),

		// Legal
		MustNew("ein",
			`\b\d{2}-\d{7}\b`,
			SeverityMedium, CategoryLegal),
		MustNew("case_number",
			`(?i)\bcase\s*(?:no|number)?\s*[:#.]?\s*\d{1,2}:\d{2}-[a-z]{2}-\d{3,6}\b`,
			SeverityMedium, CategoryLegal),
		MustNew("docket_number",
			`\b\d{1,2}:\d{2}-[a-z]{2}-\d{3,6}\b`,
			SeverityLow, CategoryLegal),
	}
}
