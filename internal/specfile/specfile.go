// Package specfile parses JSON conversion spec files and validates
// them against the embedded schema before any image is touched.
package specfile

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"timbermap.tools/internal/convert"
)

//go:embed spec.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("spec.schema.json", schemaJSON)

// Parse reads a spec file, validates its shape against the schema, then
// decodes it and applies the converter's defaults and conflict checks.
func Parse(path string) (convert.Spec, error) {
	var spec convert.Spec

	raw, err := os.ReadFile(path)
	if err != nil {
		return spec, err
	}
	return parseBytes(raw)
}

func parseBytes(raw []byte) (convert.Spec, error) {
	var spec convert.Spec

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return spec, fmt.Errorf("specfile: not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return spec, fmt.Errorf("specfile: %w", err)
	}

	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return spec, fmt.Errorf("specfile: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return spec, err
	}
	return spec, nil
}
