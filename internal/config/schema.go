// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package config

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the configuration schema.
const SchemaID = "https://aegis.dev/schemas/config.schema.json"

var (
	schemaOnce     sync.Once
	schemaCompiled *jschema.Schema
	schemaErr      error
)

// GenerateSchema generates a JSON Schema from the Config struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Aegis Configuration"
	schema.Description = "Schema for aegis YAML configuration files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "marshal schema").Wrap(err)
	}
	return data, nil
}

// ValidateSchema validates YAML data against the configuration schema.
// Unknown keys are rejected.
func ValidateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "parse yaml").Wrap(err)
	}
	// An empty file is an empty configuration.
	if doc == nil {
		doc = map[string]any{}
	}

	// Round-trip through JSON so numbers reach the validator as json.Number.
	raw, err := json.Marshal(doc)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "convert yaml").Wrap(err)
	}
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "convert yaml").Wrap(err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		return oops.Code("CONFIG_INVALID").Wrapf(ErrInvalid, "schema validation failed: %v", err)
	}
	return nil
}

func compiledSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			schemaErr = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			schemaErr = oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "parse schema").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("config.schema.json", doc); err != nil {
			schemaErr = oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "add schema").Wrap(err)
			return
		}
		schemaCompiled, schemaErr = c.Compile("config.schema.json")
		if schemaErr != nil {
			schemaErr = oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "compile schema").Wrap(schemaErr)
		}
	})
	return schemaCompiled, schemaErr
}
