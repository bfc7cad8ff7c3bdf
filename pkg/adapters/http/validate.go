package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var rawSpec []byte

// Schema names of request bodies.
const (
	schemaItemInput      = "ItemInput"
	schemaQuantityUpdate = "QuantityUpdate"
)

// validator checks request bodies against the embedded OpenAPI component schemas.
type validator struct {
	doc *openapi3.T
}

func newValidator(ctx context.Context) (*validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return &validator{doc: doc}, nil
}

// decode validates body against the named schema and unmarshals it into dst.
func (v *validator) decode(schema string, body []byte, dst any) error {
	ref, ok := v.doc.Components.Schemas[schema]
	if !ok || ref.Value == nil {
		return fmt.Errorf("unknown schema %q", schema)
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if err := ref.Value.VisitJSON(value); err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}
