package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// DocumentSchema is the JSON Schema of one stored task document.
const DocumentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "Task",
  "type": "object",
  "required": ["complete", "identifier", "name", "priority"],
  "properties": {
    "complete":   {"type": "boolean"},
    "identifier": {"type": "string", "minLength": 1},
    "name":       {"type": "string", "minLength": 1, "maxLength": 500},
    "notes":      {"type": ["string", "null"]},
    "priority":   {"enum": ["low", "normal", "high", "critical"]}
  }
}`

const documentSchemaURL = "task.schema.json"

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func documentSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(documentSchemaURL, strings.NewReader(DocumentSchema)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(documentSchemaURL)
	})
	return compiledSchema, compileErr
}

// DocumentError locates the first schema violation in a document.
type DocumentError struct {
	// Path is a JSON pointer into the document, "" for the root.
	Path    string
	Message string
}

func (e *DocumentError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidateDocument checks raw JSON against DocumentSchema. The identifier is
// not parsed here; FromRepresentation does that.
func ValidateDocument(data []byte) error {
	s, err := documentSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return &DocumentError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return &DocumentError{Message: err.Error()}
		}
		return firstCause(ve)
	}
	return nil
}

// firstCause descends to the first leaf violation.
func firstCause(ve *jsonschema.ValidationError) *DocumentError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return &DocumentError{Path: ve.InstanceLocation, Message: ve.Message}
}
