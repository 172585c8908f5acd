package util

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the global logger instance
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.WarnLevel)
	Logger.SetFormatter(textFormatter())
}

func textFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
}

// Log formats accepted by ConfigureLogging
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ConfigureLogging sets the level ("debug", "warn", ...) and the format
// of diagnostic output.
func ConfigureLogging(level, format string) error {
	if err := SetLogLevel(level); err != nil {
		return err
	}
	switch format {
	case "", LogFormatText:
		Logger.SetFormatter(textFormatter())
	case LogFormatJSON:
		Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"})
	default:
		return fmt.Errorf("unknown log format %q (want %s or %s)", format, LogFormatText, LogFormatJSON)
	}
	return nil
}

// SetLogLevel sets the logging level
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// SetLogOutput sets the log output destination
func SetLogOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// WithNode returns a logger with node (hostname) context
func WithNode(hostname string) *logrus.Entry {
	return Logger.WithField("node", hostname)
}

// WithVRF returns a logger with node and VRF context
func WithVRF(hostname, vrf string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"node": hostname,
		"vrf":  vrf,
	})
}

// WithRun returns a logger tagged with an analysis run ID
func WithRun(runID string) *logrus.Entry {
	return Logger.WithField("run", runID)
}

// Debugf logs a formatted debug message
func Debugf(format string, args ...interface{}) {
	Logger.Debugf(format, args...)
}

// Warnf logs a formatted warning message
func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}
