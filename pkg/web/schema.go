package web

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument is returned when an imported workflow does not match the document schema.
var ErrInvalidDocument = errors.New("workflow document does not match schema")

// workflowDocumentSchema describes what the builder exports. It checks shape only: broken links, duplicate
// ids and bad content are left for the health analysis to report.
const workflowDocumentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["steps"],
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string"},
    "status": {"type": "string", "enum": ["draft", "active", "paused", "archived"]},
    "entry_step_id": {"type": "string"},
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string"},
          "type": {"type": "string", "minLength": 1},
          "next_step_id": {"type": "string"},
          "is_entry": {"type": "boolean"},
          "branches": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "condition": {"type": "string"},
                "target_step_id": {"type": "string"}
              }
            }
          },
          "payload": {"type": ["object", "null"]}
        }
      }
    }
  }
}`

var workflowSchema = gojsonschema.NewStringLoader(workflowDocumentSchema)

// validateWorkflowDocument checks a raw workflow document against the import schema.
func validateWorkflowDocument(document []byte) error {
	result, err := gojsonschema.Validate(workflowSchema, gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(errs, "; "))
	}

	return nil
}
