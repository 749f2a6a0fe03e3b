package intake

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ingestSchema validates the ingest RPC payload before anything touches the
// database.
const ingestSchema = `{
	"type": "object",
	"required": ["sender"],
	"properties": {
		"account":   {"type": "string", "maxLength": 140},
		"sender":    {"type": "string", "minLength": 3, "maxLength": 320, "pattern": "@"},
		"subject":   {"type": "string", "maxLength": 998},
		"body":      {"type": "string"},
		"ticket_id": {"type": "string", "maxLength": 64}
	},
	"additionalProperties": false
}`

var ingestSchemaLoader = gojsonschema.NewStringLoader(ingestSchema)

// ValidateIngestPayload checks a raw ingest body against the schema and
// returns a flat list of violation messages.
func ValidateIngestPayload(raw json.RawMessage) ([]string, error) {
	result, err := gojsonschema.Validate(ingestSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate ingest payload: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	var out []string
	for _, issue := range result.Errors() {
		field := issue.Field()
		if field == "(root)" {
			field = ""
		} else {
			field += ": "
		}
		out = append(out, strings.TrimSpace(field+issue.Description()))
	}
	return out, nil
}
