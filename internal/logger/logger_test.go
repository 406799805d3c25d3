package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", "production", &buf)

	log.WithField("component", "weather_service").
		WithFields(map[string]interface{}{"city": "London"}).
		WithError(errors.New("boom")).
		Errorf("lookup failed for %s", "London")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "lookup failed for London", entry["msg"])
	assert.Equal(t, "weather_service", entry["component"])
	assert.Equal(t, "London", entry["city"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", "development", &buf)

	log.Infof("hidden")
	assert.Empty(t, buf.String())

	log.Warnf("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("chatty", "development", &buf)

	log.Debugf("hidden")
	log.Infof("visible")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}
