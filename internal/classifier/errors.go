// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package classifier

import "fmt"

// PatternError reports a single pattern that could not be applied. It is
// recoverable: the classifier skips the pattern and keeps scanning with the
// rest of the catalog.
type PatternError struct {
	Pattern string
	Cause   any
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("pattern %s failed: %v", e.Pattern, e.Cause)
}
