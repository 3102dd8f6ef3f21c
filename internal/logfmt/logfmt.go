// Package logfmt holds the log record layouts shared by the supervisor and the
// exec trampoline running in its children.
package logfmt

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Supported formats.
const (
	Text = "text"
	JSON = "json"
)

// Formatter returns the logrus formatter for format. An empty format is text.
func Formatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", Text:
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		}, nil
	case JSON:
		return &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "ts",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "msg",
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}
