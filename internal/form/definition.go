// internal/form/definition.go
//
// Intake – form definition loader.
//
// Context
//   The intake page is laid out from a YAML definition: order, labels, input
//   types, placeholders, and autocomplete hints.  Field names in the YAML must
//   be intake.Field values so the renderer can bind each input to the
//   controller's draft and error map.  A default definition is embedded in
//   the binary; operators may point the web binary at an override file.
//
// Workflow
//   •  Parse decodes YAML and validates structural rules.
//   •  LoadFormDef reads a file and calls Parse.
//   •  Default returns the embedded definition, parsed once.
//
// Style
//   Comments follow full sentences, two spaces after periods, and Oxford
//   commas.
//
//------------------------------------------------------------------------------

package form

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yanizio/intake/internal/intake"
)

//go:embed intake.yaml
var defaultYAML []byte

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// FormDef represents one form definition loaded from YAML.
type FormDef struct {
	ID     string     `yaml:"id"`     // Identifier, e.g. “patients/new”.
	Title  string     `yaml:"title"`  // Page heading.
	Submit string     `yaml:"submit"` // Submit button text.  Optional.
	Fields []FieldDef `yaml:"fields"` // Display order.
}

// FieldDef describes a single input control on the form.
type FieldDef struct {
	Name         intake.Field `yaml:"name"`         // Draft key.  Required.
	Label        string       `yaml:"label"`        // Visible label.  Required.
	Type         string       `yaml:"type"`         // text, email, tel, or date.
	Placeholder  string       `yaml:"placeholder"`  // Optional.
	Autocomplete string       `yaml:"autocomplete"` // Optional autofill hint.
	Hint         string       `yaml:"hint"`         // Optional help text.
	Required     bool         `yaml:"required"`     // Mirrors the validator; UI only.
}

var (
	allowedTypes = map[string]bool{"text": true, "email": true, "tel": true, "date": true}

	// mandatory lists the fields without which a draft could never validate.
	mandatory = []intake.Field{
		intake.FieldFirstName,
		intake.FieldLastName,
		intake.FieldDOB,
		intake.FieldEmail,
	}
)

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// Parse decodes raw YAML and validates it.  src names the origin in errors.
func Parse(raw []byte, src string) (*FormDef, error) {
	var fd FormDef
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", src, err)
	}
	if err := validateFormDef(&fd, src); err != nil {
		return nil, err
	}
	if fd.Submit == "" {
		fd.Submit = "Register patient"
	}
	return &fd, nil
}

// LoadFormDef reads and parses one YAML file.
func LoadFormDef(path string) (*FormDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form file %s: %w", path, err)
	}
	return Parse(raw, path)
}

var (
	defaultOnce sync.Once
	defaultDef  *FormDef
)

// Default returns the embedded intake definition.  It panics if the embedded
// file is invalid, which the package tests rule out.
func Default() *FormDef {
	defaultOnce.Do(func() {
		fd, err := Parse(defaultYAML, "embedded intake.yaml")
		if err != nil {
			panic(err)
		}
		defaultDef = fd
	})
	return defaultDef
}

// -----------------------------------------------------------------------------
// Validation helpers
// -----------------------------------------------------------------------------

// validateFormDef enforces rules YAML tags cannot express.
func validateFormDef(fd *FormDef, src string) error {
	if fd.ID == "" {
		return fmt.Errorf("form definition %s: missing required 'id'", src)
	}
	if len(fd.Fields) == 0 {
		return fmt.Errorf("form definition %s: must have 'fields'", src)
	}

	seen := make(map[intake.Field]struct{}, len(fd.Fields))
	for i := range fd.Fields {
		f := &fd.Fields[i]
		if !f.Name.Valid() {
			return fmt.Errorf("form %s: unknown field name '%s'", src, f.Name)
		}
		if f.Label == "" {
			return fmt.Errorf("form %s: field '%s' missing 'label'", src, f.Name)
		}
		if !allowedTypes[f.Type] {
			return fmt.Errorf("form %s: field '%s' has unsupported type '%s'", src, f.Name, f.Type)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("form %s: duplicate field name '%s'", src, f.Name)
		}
		seen[f.Name] = struct{}{}
	}

	for _, name := range mandatory {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("form %s: required field '%s' is not laid out", src, name)
		}
	}
	return nil
}
