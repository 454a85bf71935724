package pcf

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/product-footprint.json
var footprintSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(footprintSchema))
	})
	return schema, schemaErr
}

// Validate checks a raw footprint document against the footprint schema.
// Violations are reported as a RequestError listing each failing field.
func Validate(raw []byte) error {
	s, err := loadSchema()
	if err != nil {
		return fmt.Errorf("failed to load footprint schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return apperr.Request("footprint is not valid JSON: %v", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return apperr.Request("invalid footprint: %s", strings.Join(problems, "; "))
}

// Decode validates raw and unmarshals it into a wire footprint.
func Decode(raw []byte) (*ProductFootprint, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}
	var w ProductFootprint
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, apperr.Request("invalid footprint: %v", err)
	}
	return &w, nil
}
