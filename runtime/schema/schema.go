package schema

import (
	_ "embed"

	"github.com/xeipuuv/gojsonschema"
)

// Schema validates JSON documents.
type Schema struct {
	schema *gojsonschema.Schema
}

func newSchema(data []byte) (*Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, err
	}

	return &Schema{schema: schema}, nil
}

// Validate validates the raw JSON document data. An error is returned
// if data is not valid JSON.
func (s *Schema) Validate(data []byte) (*gojsonschema.Result, error) {
	return s.schema.Validate(gojsonschema.NewBytesLoader(data))
}

//go:embed request.json
var requestSchema []byte

// NewRequestSchema returns the schema of command requests.
func NewRequestSchema() (*Schema, error) {
	return newSchema(requestSchema)
}

//go:embed response.json
var responseSchema []byte

// NewResponseSchema returns the schema of command responses.
func NewResponseSchema() (*Schema, error) {
	return newSchema(responseSchema)
}
