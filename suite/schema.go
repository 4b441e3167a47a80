package suite

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/agentuse/agentuse/suiteerrors"
)

// descriptorSchema is the JSON Schema for a suite descriptor, expressed as a
// Go literal so the binary needs no schema file on disk. It is compiled once
// at package init.
const descriptorSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["id", "name", "config", "tests"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"config": {
			"type": "object",
			"required": ["models", "runs"],
			"properties": {
				"models": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
				"runs": {"type": "integer", "minimum": 1},
				"maxConcurrentTrials": {"type": "integer", "minimum": 1}
			}
		},
		"tests": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["agent", "scenarios"],
				"properties": {
					"agent": {"type": "string", "minLength": 1},
					"scenarios": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["id", "name", "input"],
							"properties": {
								"id": {"type": "string", "minLength": 1},
								"name": {"type": "string", "minLength": 1},
								"difficulty": {"enum": ["easy", "medium", "hard"]},
								"input": {"type": "string"}
							}
						}
					}
				}
			}
		}
	}
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(descriptorSchema), &doc); err != nil {
		panic(fmt.Errorf("agentuse: parsing embedded suite schema: %w", err))
	}
	compiler := jsonschema.NewCompiler()
	const resource = "agentuse://suite-descriptor.schema.json"
	if err := compiler.AddResource(resource, doc); err != nil {
		panic(fmt.Errorf("agentuse: adding embedded suite schema: %w", err))
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		panic(fmt.Errorf("agentuse: compiling embedded suite schema: %w", err))
	}
	return schema
}

// validateDescriptor parses raw suite YAML, validates it against the suite
// schema, and returns the typed Descriptor on success. Schema violations are
// returned as *suiteerrors.ConfigError naming the first offending field
// path.
func validateDescriptor(data []byte) (*Descriptor, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, suiteerrors.Wrap("suitePath", "parse_error", err)
	}

	// jsonschema validates against JSON-shaped data (map[string]any with
	// string keys, float64 numbers); round-trip through JSON to normalize
	// the yaml.v3 decoding (map[any]any, int) into that shape.
	normalized, err := toJSONShape(generic)
	if err != nil {
		return nil, suiteerrors.Wrap("suitePath", "parse_error", err)
	}

	if err := compiledSchema.Validate(normalized); err != nil {
		field, issue := firstSchemaViolation(err)
		return nil, suiteerrors.Wrap(field, issue, err)
	}

	var desc Descriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, suiteerrors.Wrap("suitePath", "parse_error", err)
	}
	return &desc, nil
}

func toJSONShape(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// firstSchemaViolation extracts a stable field path and short issue code
// from a jsonschema.ValidationError, falling back to a generic code when the
// error is not the expected type.
func firstSchemaViolation(err error) (field, issue string) {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return "suitePath", "schema_violation"
	}
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	if len(leaf.InstanceLocation) == 0 {
		return "#", "schema_violation"
	}
	return strings.Join(leaf.InstanceLocation, "."), "schema_violation"
}
