package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if tt.wantErr {
			assert.Error(t, err, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestDefaultLoggerRoutesByLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewWriterLogger(&out, &errOut, false)

	logger.Debug("hidden")
	logger.Info("scored", Fields{"score": 91.5, "mode": "single"})
	logger.Error(errors.New("boom"), "alignment failed")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[INFO] scored mode=single score=91.5")
	assert.Contains(t, errOut.String(), "[ERROR] alignment failed: boom")
}

func TestWithContextCarriesFields(t *testing.T) {
	var out bytes.Buffer
	logger := NewWriterLogger(&out, &out, false)

	ctx := ContextWithFields(context.Background(), Fields{"request_id": "abc"})
	ctx = ContextWithFields(ctx, Fields{"item": "alif"})

	logger.WithContext(ctx).Info("evaluating")

	assert.Contains(t, out.String(), "item=alif")
	assert.Contains(t, out.String(), "request_id=abc")
}
