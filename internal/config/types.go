package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// Limits applied to supervisor configuration.
const (
	MaxCommands       = 64
	MaxErrorThreshold = 255
)

// Exit policies accepted by the supervisor.
const (
	ExitPolicyJobs        = "jobs"
	ExitPolicyDescendants = "descendants"
)

// Log formats accepted by the supervisor.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Config mirrors the subreap.yaml document structure.
type Config struct {
	Version     string         `yaml:"version"`
	Commands    []*CommandSpec `yaml:"commands"`
	Shutdown    ShutdownSpec   `yaml:"shutdown"`
	ExitPolicy  string         `yaml:"exitPolicy"`
	Logging     LoggingSpec    `yaml:"logging"`
	PidFile     string         `yaml:"pidFile"`
	MetricsAddr string         `yaml:"metricsAddr"`
}

// CommandSpec describes one supervised job.
type CommandSpec struct {
	Name        string            `yaml:"name"`
	Command     Argv              `yaml:"command"`
	Env         map[string]string `yaml:"env"`
	EnvFromFile string            `yaml:"envFromFile"`
	Workdir     string            `yaml:"workdir"`
}

// ShutdownSpec configures escalation once a job fails.
type ShutdownSpec struct {
	Signal         string   `yaml:"signal"`
	KillTimeout    Duration `yaml:"killTimeout"`
	ErrorThreshold int      `yaml:"errorThreshold"`
}

// LoggingSpec configures supervisor log output.
type LoggingSpec struct {
	Quiet  int    `yaml:"quiet"`
	Format string `yaml:"format"`
}

// Argv is a command vector. In YAML it is either a list of arguments or a
// single string split with shell quoting rules.
type Argv []string

// UnmarshalYAML accepts both the list and the string form.
func (a *Argv) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		words, err := SplitCommand(node.Value)
		if err != nil {
			return err
		}
		*a = words
		return nil
	case yaml.SequenceNode:
		var words []string
		if err := node.Decode(&words); err != nil {
			return err
		}
		*a = words
		return nil
	default:
		return fmt.Errorf("line %d: command must be a string or a list of strings", node.Line)
	}
}

// SplitCommand tokenizes a command line with shell quoting rules.
func SplitCommand(line string) ([]string, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("split command %q: %w", line, err)
	}
	return words, nil
}

// ApplyDefaults fills in values omitted from the document.
func (c *Config) ApplyDefaults() {
	c.Version = strings.TrimSpace(c.Version)
	if c.Version == "" {
		c.Version = "1"
	}
	c.ExitPolicy = strings.ToLower(strings.TrimSpace(c.ExitPolicy))
	if c.ExitPolicy == "" {
		c.ExitPolicy = ExitPolicyJobs
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}
	for idx, cmd := range c.Commands {
		if cmd == nil {
			continue
		}
		cmd.Name = strings.TrimSpace(cmd.Name)
		if cmd.Name == "" && len(cmd.Command) > 0 {
			cmd.Name = defaultCommandName(idx, cmd.Command)
		}
	}
}

// defaultCommandName derives a job name from the program, suffixed with the
// command's position so repeated programs stay distinct.
func defaultCommandName(idx int, argv []string) string {
	base := argv[0]
	if slash := strings.LastIndexByte(base, '/'); slash >= 0 {
		base = base[slash+1:]
	}
	if base == "" {
		base = "job"
	}
	return fmt.Sprintf("%s-%d", base, idx)
}

// EnvList renders env as sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func fieldPath(parts ...string) string {
	return strings.Join(parts, ".")
}

func commandField(index int, parts ...string) string {
	pathParts := append([]string{fmt.Sprintf("commands[%d]", index)}, parts...)
	return fieldPath(pathParts...)
}

func shutdownField(parts ...string) string {
	pathParts := append([]string{"shutdown"}, parts...)
	return fieldPath(pathParts...)
}
