package config

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LoggingConfig{Level: "debug", Format: "json"})

	logger.Debug().Str("instance", "geolocation-nominatim-map").Msg("marker placed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "geowidget", entry["service"])
	assert.Equal(t, "geolocation-nominatim-map", entry["instance"])
}

func TestNewLoggerTo_LevelFallback(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zerolog.Level
	}{
		{name: "empty defaults to info", level: "", want: zerolog.InfoLevel},
		{name: "unknown defaults to info", level: "chatty", want: zerolog.InfoLevel},
		{name: "upper case accepted", level: "WARN", want: zerolog.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLoggerTo(&bytes.Buffer{}, LoggingConfig{Level: tt.level})
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}
