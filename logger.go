package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// newLogger builds the application logger. Level "off" or "none" silences it
// entirely; an unparseable level falls back to info.
func newLogger(level string) *logrus.Logger {
	logger := logrus.New()

	if level == "off" || level == "none" {
		logger.SetOutput(io.Discard)
	} else {
		lv, err := logrus.ParseLevel(level)
		if err != nil {
			lv = logrus.InfoLevel
		}
		logger.SetLevel(lv)
		logger.SetOutput(os.Stdout)
	}

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		ForceColors:     true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return logger
}
