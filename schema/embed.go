package schema

import _ "embed"

// ConfigV1Schema contains the JSON schema for subreap configuration files.
//
//go:embed subreap.v1.json
var ConfigV1Schema []byte
