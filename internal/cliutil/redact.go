package cliutil

import (
	"regexp"
)

const redactedPlaceholder = "[redacted]"

// secretArgPattern matches a secret-looking name followed by its value, either
// as NAME=value, NAME: value or a flag and its separate argument
// (--password value).
var secretArgPattern = regexp.MustCompile(`(?i)((?:--?|\b)[\w.-]*(?:password|passwd|secret|token|api[_-]?key|credential)[\w.-]*)(=|:\s*|\s+)(["']?)([^"'\s` + "`" + `]+)(["']?)`)

// RedactSecrets masks values of secret-looking arguments and assignments so
// command lines can be logged without leaking credentials passed on them.
func RedactSecrets(message string) string {
	if message == "" {
		return message
	}
	return secretArgPattern.ReplaceAllString(message, "$1$2$3"+redactedPlaceholder+"$5")
}
