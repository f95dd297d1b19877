package resolver

import (
	"embed"
	"fmt"
	"strings"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	metadataSchema = mustLoadSchema("schemas/metadata.schema.json")
	summarySchema  = mustLoadSchema("schemas/summary.schema.json")
)

func mustLoadSchema(name string) *gojsonschema.Schema {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", name, err))
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

// validateDocument checks data against schema, reporting violations as
// domain.ErrMalformedMetadata
func validateDocument(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedMetadata, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return fmt.Errorf("%w: %s", domain.ErrMalformedMetadata, strings.Join(msgs, "; "))
}
