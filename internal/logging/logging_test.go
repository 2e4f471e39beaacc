package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevelsAndFormats(t *testing.T) {
	log, err := New(Config{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log, err = New(Config{Level: "chatty"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "netinv.log")
	log, err := New(Config{Level: "info", Format: "json", Output: OutputFile, FilePath: path, MaxSize: 1})
	require.NoError(t, err)

	Component(log, "test").WithField("device", "R1").Info("device added")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"device":"R1"`)
}

func TestNewRejectsBadOutput(t *testing.T) {
	_, err := New(Config{Output: "syslog"})
	assert.Error(t, err)

	_, err = New(Config{Output: OutputFile})
	assert.Error(t, err)
}
