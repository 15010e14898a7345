package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

var compiledSchemas sync.Map // Schema.Name -> *jsonschema.Schema

// validateResponse checks a model reply against the request schema. A nil
// schema accepts anything. Failures come back as *ErrInvalidResponse.
func validateResponse(schema *Schema, raw json.RawMessage) error {
	if schema == nil {
		return nil
	}
	reply, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("reply is not JSON: %w", err)}
	}
	compiled, err := compiledSchema(schema)
	if err != nil {
		return &ErrInvalidResponse{Content: raw, Err: err}
	}
	if err := compiled.Validate(reply); err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("reply does not match %s: %w", schema.Name, err)}
	}
	return nil
}

func compiledSchema(schema *Schema) (*jsonschema.Schema, error) {
	if s, ok := compiledSchemas.Load(schema.Name); ok {
		return s.(*jsonschema.Schema), nil
	}

	// Round-trip through JSON so Go ints in Definition become json.Number.
	b, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("encoding schema %s: %w", schema.Name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decoding schema %s: %w", schema.Name, err)
	}

	url := "intervue://schemas/" + schema.Name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("loading schema %s: %w", schema.Name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", schema.Name, err)
	}
	actual, _ := compiledSchemas.LoadOrStore(schema.Name, s)
	return actual.(*jsonschema.Schema), nil
}
