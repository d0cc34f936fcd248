// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger(LogConfig{Level: "nonsense"})
	assert.Error(t, err)
}

func TestStartTimingLogsOutcome(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	obs := NewObserver(zap.New(core))

	done := obs.StartTiming("analyzer", "analyze")
	done(true, zap.String("document_id", "doc-1"))

	done = obs.StartTiming("redactor", "redact_document")
	done(false)

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "operation completed", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "analyzer", fields["component"])
	assert.Equal(t, "analyze", fields["operation"])
	assert.Equal(t, "doc-1", fields["document_id"])
	assert.Equal(t, true, fields["success"])
	assert.Contains(t, fields, "duration_ms")

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "operation failed", entries[1].Message)
	assert.Equal(t, false, entries[1].ContextMap()["success"])
}

func TestNewObserverNilLogger(t *testing.T) {
	obs := NewObserver(nil)
	assert.NotPanics(t, func() { obs.StartTiming("store", "write")(true) })
}
