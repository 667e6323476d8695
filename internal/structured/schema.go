package structured

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"resume-builder/internal/llm"
)

const scalarSchema = `{"type": ["string", "number", "boolean", "null"]}`

// payloadSchema describes a StructuredRecord after key canonicalization.
// Field values may be any scalar; they are rendered to strings on decode.
var payloadSchema = mustSchema(`{
  "type": "object",
  "anyOf": [
    {"required": ["education"]},
    {"required": ["workExperience"]}
  ],
  "properties": {
    "education": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "institute": ` + scalarSchema + `,
          "location": ` + scalarSchema + `,
          "degree": ` + scalarSchema + `,
          "major": ` + scalarSchema + `,
          "startDate": ` + scalarSchema + `,
          "endDate": ` + scalarSchema + `,
          "gpa": ` + scalarSchema + `,
          "relevantCoursework": {"type": ["string", "number", "boolean", "null", "array"]},
          "other": {"type": ["string", "number", "boolean", "null", "array"]}
        }
      }
    },
    "workExperience": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "jobTitle": ` + scalarSchema + `,
          "company": ` + scalarSchema + `,
          "location": ` + scalarSchema + `,
          "startDate": ` + scalarSchema + `,
          "endDate": ` + scalarSchema + `,
          "responsibilities": {
            "type": ["array", "string", "null"],
            "items": ` + scalarSchema + `
          }
        }
      }
    }
  }
}`)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("structured: invalid payload schema: %v", err))
	}
	return schema
}

// SchemaError lists the shape violations of a model payload.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "structured payload does not match schema: " + strings.Join(e.Violations, "; ")
}

// DecodePayload turns model output into a StructuredRecord. The text may be
// wrapped in a code fence or surrounded by prose; keys may use any
// supported naming convention.
func DecodePayload(raw string) (StructuredRecord, error) {
	obj, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return StructuredRecord{}, err
	}

	var generic any
	if err := json.Unmarshal([]byte(obj), &generic); err != nil {
		return StructuredRecord{}, fmt.Errorf("decode payload: %w", err)
	}
	canonical, err := json.Marshal(canonicalizeKeys(generic))
	if err != nil {
		return StructuredRecord{}, fmt.Errorf("encode payload: %w", err)
	}

	result, err := payloadSchema.Validate(gojsonschema.NewBytesLoader(canonical))
	if err != nil {
		return StructuredRecord{}, fmt.Errorf("validate payload: %w", err)
	}
	if !result.Valid() {
		schemaErr := &SchemaError{}
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			schemaErr.Violations = append(schemaErr.Violations, field+": "+desc.Description())
		}
		return StructuredRecord{}, schemaErr
	}

	var rec StructuredRecord
	if err := json.Unmarshal(canonical, &rec); err != nil {
		return StructuredRecord{}, fmt.Errorf("decode payload: %w", err)
	}
	return rec.Normalized(), nil
}
