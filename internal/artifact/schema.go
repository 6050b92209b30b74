package artifact

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

var schemas = map[string]string{
	"columns": `{
		"type": "array",
		"minItems": 1,
		"uniqueItems": true,
		"items": {"type": "string", "minLength": 1}
	}`,
	"transform": `{
		"type": "object",
		"required": ["steps"],
		"properties": {
			"steps": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["kind", "columns"],
					"properties": {
						"name": {"type": "string"},
						"kind": {"enum": ["scale", "onehot", "passthrough"]},
						"columns": {"type": "array", "items": {"type": "string"}},
						"mean": {"type": "array", "items": {"type": "number"}},
						"scale": {"type": "array", "items": {"type": "number"}},
						"categories": {"type": "array", "items": {"type": "array", "minItems": 1, "items": {"type": "number"}}},
						"drop": {"enum": ["", "first", "if_binary"]},
						"handle_unknown": {"enum": ["", "error", "ignore"]}
					}
				}
			}
		}
	}`,
	"model": `{
		"$defs": {
			"logistic": {
				"type": "object",
				"required": ["kind", "coefficients"],
				"properties": {
					"kind": {"const": "logistic"},
					"coefficients": {"type": "array", "minItems": 1, "items": {"type": "number"}},
					"intercept": {"type": "number"}
				}
			}
		},
		"oneOf": [
			{"$ref": "#/$defs/logistic"},
			{
				"type": "object",
				"required": ["kind", "members"],
				"properties": {
					"kind": {"const": "committee"},
					"voting": {"enum": ["soft"]},
					"members": {"type": "array", "minItems": 1, "items": {"$ref": "#/$defs/logistic"}},
					"weights": {"type": "array", "items": {"type": "number", "minimum": 0}}
				}
			}
		]
	}`,
}

// compiled caches compiled schemas by name.
var compiled sync.Map // map[string]*jsonschema.Schema

// validateDocument checks raw JSON against the named schema.
func validateDocument(name string, raw []byte) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	sch, err := schemaFor(name)
	if err != nil {
		return err
	}
	if err := sch.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func schemaFor(name string) (*jsonschema.Schema, error) {
	if cached, ok := compiled.Load(name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	src, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("no schema %q", name)
	}
	var def any
	if err := json.Unmarshal([]byte(src), &def); err != nil {
		return nil, fmt.Errorf("parse schema %q: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", name)
	if err := c.AddResource(url, def); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", name, err)
	}

	compiled.Store(name, sch)
	return sch, nil
}
