// Package validation validates inbound payloads against JSON schemas.
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

type Result struct {
	Valid  bool    `json:"valid"`
	Errors []Error `json:"errors,omitempty"`
}

type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// GetErrorMessages flattens validation errors into printable strings.
func (r *Result) GetErrorMessages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return msgs
}

// Validate checks a document (map or struct) against a JSON schema string.
func Validate(document interface{}, schemaJSON string) (*Result, error) {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewGoLoader(document)

	res, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}

	result := &Result{Valid: res.Valid()}
	for _, e := range res.Errors() {
		result.Errors = append(result.Errors, Error{
			Field:   e.Field(),
			Message: e.Description(),
		})
	}
	return result, nil
}

// ChatRequestSchema constrains the inbound chat payload.
const ChatRequestSchema = `{
	"type": "object",
	"required": ["message"],
	"properties": {
		"message": {"type": "string", "minLength": 1, "maxLength": 4000},
		"conversation_id": {"type": "string", "maxLength": 128}
	},
	"additionalProperties": false
}`

// LeadSchema constrains a lead record before it is handed to the CRM.
const LeadSchema = `{
	"type": "object",
	"required": ["conversation_id"],
	"properties": {
		"name": {"type": "string", "maxLength": 200},
		"email": {"type": "string", "maxLength": 255},
		"phone": {"type": "string", "maxLength": 50},
		"conversation_id": {"type": "string", "minLength": 1}
	},
	"anyOf": [
		{"required": ["email"]},
		{"required": ["phone"]}
	]
}`
