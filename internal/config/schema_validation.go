package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	subreapschema "github.com/Paintersrp/subreap/schema"
)

const schemaResource = "subreap.v1.json"

var loadSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaResource, bytes.NewReader(subreapschema.ConfigV1Schema)); err != nil {
		return nil, fmt.Errorf("add config schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	return schema, nil
})

func validateAgainstSchema(doc map[string]any) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("load config schema: %w", err)
	}

	// Round-trip through JSON so YAML scalars take the shapes the validator
	// expects.
	var normalized any
	buf, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("prepare config for schema validation: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buf))
	decoder.UseNumber()
	if err := decoder.Decode(&normalized); err != nil {
		return fmt.Errorf("prepare config for schema validation: %w", err)
	}

	if err := schema.Validate(normalized); err != nil {
		var vErr *jsonschema.ValidationError
		if errors.As(err, &vErr) {
			return fmt.Errorf("schema validation failed:\n%s", formatValidationError(vErr))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func formatValidationError(err *jsonschema.ValidationError) string {
	var b strings.Builder
	var walk func(*jsonschema.ValidationError, int)
	walk = func(err *jsonschema.ValidationError, depth int) {
		// Wrapper nodes only restate their causes.
		if len(err.Causes) == 0 || !strings.HasPrefix(err.Message, "doesn't validate with") {
			fmt.Fprintf(&b, "%s- %s: %s\n", strings.Repeat("  ", depth), instancePath(err.InstanceLocation), err.Message)
			depth++
		}
		for _, cause := range err.Causes {
			walk(cause, depth)
		}
	}
	walk(err, 0)
	return strings.TrimRight(b.String(), "\n")
}

// instancePath turns a JSON pointer such as /commands/0/name into the field
// path notation used by Validate: commands[0].name.
func instancePath(ptr string) string {
	var b strings.Builder
	for _, segment := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		if segment == "" {
			continue
		}
		decoded := strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(decoded); err == nil {
			fmt.Fprintf(&b, "[%s]", decoded)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(decoded)
	}
	if b.Len() == 0 {
		return "config"
	}
	return b.String()
}
