// Package logging builds the diagnostic logger shared by commands.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a text logger writing to out (stderr when nil). Unknown levels
// fall back to warn.
func New(level string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.Formatter = &logrus.TextFormatter{
		DisableColors:    true,
		FullTimestamp:    true,
		DisableTimestamp: false,
	}
	if out == nil {
		out = os.Stderr
	}
	log.Out = out
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.WarnLevel
	}
	log.Level = lvl
	return log
}
