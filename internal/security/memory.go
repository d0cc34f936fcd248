// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package security provides best-effort scrubbing of sensitive buffers.
//
// Limitations: Go's garbage collector may move or copy memory at any time,
// and conversions to string create immutable copies that cannot be zeroed.
// Wiping reduces the window of exposure but cannot guarantee that no copies
// exist elsewhere in the heap. Do not rely on this for cryptographic-strength
// memory protection.
package security

// Wipe overwrites b with zeros. The caller must drop every other reference
// to the underlying array for the wipe to be meaningful.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// SensitiveBuffer holds document bytes that should not outlive their use.
type SensitiveBuffer struct {
	data []byte
}

// NewSensitiveBuffer copies b into a wipeable buffer.
func NewSensitiveBuffer(b []byte) *SensitiveBuffer {
	data := make([]byte, len(b))
	copy(data, b)
	return &SensitiveBuffer{data: data}
}

// Bytes returns the held slice. Callers must not retain it past Clear.
func (s *SensitiveBuffer) Bytes() []byte { return s.data }

// Clear wipes and releases the buffer. Safe to call more than once.
func (s *SensitiveBuffer) Clear() {
	Wipe(s.data)
	s.data = nil
}
