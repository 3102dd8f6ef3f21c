package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a supervisor configuration file, validates it against the
// embedded schema and resolves paths relative to the file's directory.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	if err := validateAgainstSchema(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var doc Config
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}

	if err := doc.resolve(filepath.Dir(absPath)); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	doc.ApplyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return &doc, nil
}

// resolve expands environment references and anchors relative paths at base.
func (c *Config) resolve(base string) error {
	if c.PidFile != "" {
		c.PidFile = resolvePath(base, os.ExpandEnv(c.PidFile))
	}
	c.MetricsAddr = os.ExpandEnv(c.MetricsAddr)

	for idx, cmd := range c.Commands {
		if cmd == nil {
			continue
		}

		if cmd.Workdir != "" {
			cmd.Workdir = resolvePath(base, os.ExpandEnv(cmd.Workdir))
			info, err := os.Stat(cmd.Workdir)
			if err != nil {
				return fmt.Errorf("%s: %w", commandField(idx, "workdir"), err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s: %q is not a directory", commandField(idx, "workdir"), cmd.Workdir)
			}
		}

		var fileEnv map[string]string
		if cmd.EnvFromFile != "" {
			cmd.EnvFromFile = resolvePath(base, os.ExpandEnv(cmd.EnvFromFile))
			var err error
			fileEnv, err = loadEnvFile(cmd.EnvFromFile)
			if err != nil {
				return fmt.Errorf("%s: %w", commandField(idx, "envFromFile"), err)
			}
		}

		if len(fileEnv) == 0 && len(cmd.Env) == 0 {
			cmd.Env = nil
			continue
		}
		merged := make(map[string]string, len(fileEnv)+len(cmd.Env))
		for k, v := range fileEnv {
			merged[k] = v
		}
		for k, v := range cmd.Env {
			merged[k] = os.ExpandEnv(v)
		}
		cmd.Env = merged
	}
	return nil
}

func resolvePath(base, path string) string {
	if path == "" {
		return base
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(base, path))
}

// loadEnvFile parses a dotenv style file. Values may be double quoted (with Go
// escapes), single quoted (literal, no expansion) or bare with trailing
// comments stripped.
func loadEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load env file %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	values := make(map[string]string)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		key, value, ok, err := parseEnvLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("load env file %q: line %d: %w", path, lineNo, err)
		}
		if ok {
			values[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("load env file %q: %w", path, err)
	}
	return values, nil
}

func parseEnvLine(line string) (key, value string, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false, nil
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

	key, value, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false, fmt.Errorf("expected KEY=VALUE")
	}
	value = strings.TrimSpace(value)

	switch {
	case strings.HasPrefix(value, `"`):
		if len(value) < 2 || !strings.HasSuffix(value, `"`) {
			return "", "", false, fmt.Errorf("unmatched quote for %s", key)
		}
		unquoted, err := strconv.Unquote(value)
		if err != nil {
			return "", "", false, fmt.Errorf("parse value for %s: %w", key, err)
		}
		value = unquoted
	case strings.HasPrefix(value, "'"):
		if len(value) < 2 || !strings.HasSuffix(value, "'") {
			return "", "", false, fmt.Errorf("unmatched quote for %s", key)
		}
		return key, value[1 : len(value)-1], true, nil
	default:
		if comment := strings.IndexByte(value, '#'); comment >= 0 {
			value = strings.TrimSpace(value[:comment])
		}
	}
	return key, os.ExpandEnv(value), true, nil
}
