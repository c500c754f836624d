package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"backlog/internal/features"
)

// Schema names for request bodies.
const (
	SchemaFeatureCreate = "feature_create.json"
	SchemaBulkCreate    = "bulk_create.json"
	SchemaStatusUpdate  = "status_update.json"
)

const schemaBaseURL = "https://backlog.local/schemas/"

//go:embed schemas/*.json
var schemaFS embed.FS

// Validator checks request bodies against the embedded JSON Schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
	printer *message.Printer
}

// NewValidator compiles every embedded schema.
func NewValidator() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	c := jsonschema.NewCompiler()
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		raw, err := schemaFS.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", entry.Name(), err)
		}
		if err := c.AddResource(schemaBaseURL+entry.Name(), doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", entry.Name(), err)
		}
		names = append(names, entry.Name())
	}

	v := &Validator{
		schemas: make(map[string]*jsonschema.Schema, len(names)),
		printer: message.NewPrinter(language.English),
	}
	for _, name := range names {
		schema, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = schema
	}
	return v, nil
}

// Validate checks body against the named schema. Failures are returned as
// *features.ValidationError so callers map them like domain validation.
func (v *Validator) Validate(name string, body []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return &features.ValidationError{Index: -1, Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	err = schema.Validate(inst)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &features.ValidationError{Index: -1, Field: "body", Reason: err.Error()}
	}
	return v.toValidationError(ve)
}

// Decode validates body and unmarshals it into dst.
func (v *Validator) Decode(name string, body []byte, dst any) error {
	if err := v.Validate(name, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &features.ValidationError{Index: -1, Field: "body", Reason: err.Error()}
	}
	return nil
}

// toValidationError reports the first leaf failure, which names the
// offending field rather than the enclosing object.
func (v *Validator) toValidationError(ve *jsonschema.ValidationError) *features.ValidationError {
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	out := &features.ValidationError{Index: -1, Field: "body"}
	loc := leaf.InstanceLocation
	if len(loc) >= 2 && loc[0] == "features" {
		if idx, err := strconv.Atoi(loc[1]); err == nil {
			out.Index = idx
			loc = loc[2:]
		}
	}
	if len(loc) > 0 {
		out.Field = strings.Join(loc, ".")
	}
	if leaf.ErrorKind != nil {
		out.Reason = leaf.ErrorKind.LocalizedString(v.printer)
	} else {
		out.Reason = leaf.Error()
	}
	return out
}
