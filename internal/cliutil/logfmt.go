package cliutil

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/Paintersrp/subreap/internal/engine"
	"github.com/Paintersrp/subreap/internal/logfmt"
)

// NewLogger builds the supervisor logger. Each quiet step raises the minimum
// level: none logs info, one logs warnings, two or more only errors.
func NewLogger(w io.Writer, quiet int, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(LevelForQuiet(quiet))

	formatter, err := logfmt.Formatter(format)
	if err != nil {
		return nil, err
	}
	logger.SetFormatter(formatter)
	return logger, nil
}

// LevelForQuiet maps the repeatable quiet flag to a minimum level.
func LevelForQuiet(quiet int) logrus.Level {
	switch {
	case quiet <= 0:
		return logrus.InfoLevel
	case quiet == 1:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

// EventFields converts the identifying parts of an engine event into log
// fields. Zero values are left out.
func EventFields(event engine.Event) logrus.Fields {
	fields := logrus.Fields{"event": string(event.Type)}
	if event.Job != "" {
		fields["job"] = event.Job
	}
	if event.PID != 0 {
		fields["pid"] = event.PID
	}
	if event.Signal != 0 {
		fields["signal"] = int(event.Signal)
	}
	switch event.Type {
	case engine.EventTypeExited, engine.EventTypeOrphan, engine.EventTypeStopped:
		fields["status"] = event.Status
	}
	if event.Reason != "" {
		fields["reason"] = event.Reason
	}
	return fields
}

// LogEvent writes an engine event to log at the event's level.
func LogEvent(log logrus.FieldLogger, event engine.Event) {
	entry := log.WithFields(EventFields(event))
	if !event.Timestamp.IsZero() {
		entry = entry.WithTime(event.Timestamp)
	}
	if event.Err != nil {
		entry = entry.WithError(event.Err)
	}
	message := RedactSecrets(event.Message)

	switch event.Level {
	case engine.LevelError:
		entry.Error(message)
	case engine.LevelWarn:
		entry.Warn(message)
	default:
		entry.Info(message)
	}
}
