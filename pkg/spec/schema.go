package spec

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed se_dsl.schema.json
var embeddedSchema []byte

const schemaURL = "https://shieldcraft.schemas.local/se_dsl.schema.json"

// ErrSchemaMissing is returned when a configured schema file cannot be found.
var ErrSchemaMissing = errors.New("schema_missing")

// Violation is one schema failure, addressed by instance pointer.
type Violation struct {
	Pointer string `json:"pointer"`
	Message string `json:"message"`
}

// SchemaValidator validates documents against the se_dsl schema.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles the embedded se_dsl.schema.json.
func NewSchemaValidator() (*SchemaValidator, error) {
	return compileSchema(embeddedSchema)
}

// LoadSchemaValidator compiles the schema at path.
func LoadSchemaValidator(path string) (*SchemaValidator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaMissing, path)
		}
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return compileSchema(data)
}

// EmbeddedSchema returns a copy of the bundled schema bytes.
func EmbeddedSchema() []byte {
	out := make([]byte, len(embeddedSchema))
	copy(out, embeddedSchema)
	return out
}

func compileSchema(data []byte) (*SchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("schema compile failed: %w", err)
	}
	return &SchemaValidator{schema: compiled}, nil
}

// Validate reports whether doc satisfies the schema. Violations are the
// leaf causes sorted by pointer, then message.
func (v *SchemaValidator) Validate(doc *Document) (bool, []Violation) {
	if doc == nil {
		return false, []Violation{{Pointer: "", Message: "document is nil"}}
	}
	err := v.schema.Validate(doc.Plain())
	if err == nil {
		return true, nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return false, []Violation{{Pointer: "", Message: err.Error()}}
	}

	seen := make(map[Violation]bool)
	var out []Violation
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			viol := Violation{Pointer: e.InstanceLocation, Message: e.Message}
			if !seen[viol] {
				seen[viol] = true
				out = append(out, viol)
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Pointer != out[j].Pointer {
			return out[i].Pointer < out[j].Pointer
		}
		return out[i].Message < out[j].Message
	})
	return false, out
}
