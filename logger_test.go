package main

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, newLogger("debug").GetLevel())
	assert.Equal(t, logrus.WarnLevel, newLogger("warn").GetLevel())
}

func TestNewLoggerFallback(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, newLogger("nonsense").GetLevel())
}

func TestNewLoggerOff(t *testing.T) {
	assert.Equal(t, io.Discard, newLogger("off").Out)
	assert.Equal(t, io.Discard, newLogger("none").Out)
}

func TestNewLoggerFormatter(t *testing.T) {
	tf, ok := newLogger("info").Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.True(t, tf.FullTimestamp)
	assert.Equal(t, "2006-01-02 15:04:05", tf.TimestampFormat)
}
