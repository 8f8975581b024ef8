package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academic_outreach/internal/infra/config"
)

func TestNew_ProductionUsesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&config.AppConfig{LogLevel: "debug", Environment: "production"}, &buf)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	buf.Reset()
	Component(log, "reminder").WithField("subject_id", 7).Info("sent")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "reminder", line["component"])
	assert.Equal(t, float64(7), line["subject_id"])
	assert.Equal(t, "sent", line["msg"])
}

func TestNew_InvalidLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&config.AppConfig{LogLevel: "chatty"}, &buf)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.Contains(t, buf.String(), "Invalid log level")
}
