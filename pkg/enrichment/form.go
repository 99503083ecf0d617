package enrichment

import (
	"strings"

	"github.com/jmylchreest/enrichgpt/pkg/llm"
	"github.com/jmylchreest/enrichgpt/pkg/template"
)

// FieldKind is the input widget for a form field.
type FieldKind string

const (
	FieldSelect   FieldKind = "select"
	FieldTextArea FieldKind = "textarea"
	FieldText     FieldKind = "text"
	FieldCheckbox FieldKind = "checkbox"
	FieldPassword FieldKind = "password"
)

// Choice is one option of a select field.
type Choice struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Field describes one configuration input.
type Field struct {
	Name        string    `json:"name" yaml:"name"`
	Label       string    `json:"label" yaml:"label"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Kind        FieldKind `json:"kind" yaml:"kind"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Choices     []Choice  `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// Form is the ordered configuration form for a table.
type Form struct {
	Fields []Field `json:"fields" yaml:"fields"`
}

// Field returns the named field.
func (f Form) Field(name string) (Field, bool) {
	for _, fld := range f.Fields {
		if fld.Name == name {
			return fld, true
		}
	}
	return Field{}, false
}

// Defaults returns a Config populated from the field defaults.
func (f Form) Defaults() Config {
	str := func(name string) string {
		fld, _ := f.Field(name)
		s, _ := fld.Default.(string)
		return s
	}
	fld, _ := f.Field("json_format")
	jsonFormat, _ := fld.Default.(bool)
	return Config{
		Model:        str("model"),
		Prompt:       str("prompt"),
		SystemPrompt: str("system_prompt"),
		JSONFormat:   jsonFormat,
		ImageURL:     str("image_url"),
		OutputColumn: str("output_column"),
	}
}

// ConfigForm builds the form for a table with the given columns. The
// api_key field is only present when no deployment key is configured.
func ConfigForm(columns []string, staticKey bool) Form {
	models := llm.Models()
	choices := make([]Choice, len(models))
	for i, m := range models {
		choices[i] = Choice{Value: m.ID, Label: m.Label}
	}

	imageURL := ""
	for _, c := range columns {
		if strings.Contains(strings.ToLower(c), "url") {
			imageURL = "{{ " + c + " }}"
			break
		}
	}

	form := Form{Fields: []Field{
		{
			Name:    "model",
			Label:   "Model",
			Kind:    FieldSelect,
			Default: llm.DefaultModel,
			Choices: choices,
		},
		{
			Name:        "prompt",
			Label:       "Prompt",
			Description: "A template to run against each row to generate a prompt. Use {{ COL }} for columns.",
			Kind:        FieldTextArea,
			Default:     template.Default(columns),
			Required:    true,
		},
		{
			Name:        "image_url",
			Label:       "Image URL",
			Description: "Image URL template. Only used with vision models.",
			Kind:        FieldText,
			Default:     imageURL,
		},
		{
			Name:        "system_prompt",
			Label:       "System prompt",
			Description: "Instructions to apply to the main prompt. Can only be a static string, no {{ columns }}",
			Kind:        FieldTextArea,
			Default:     "",
		},
		{
			Name:        "json_format",
			Label:       "JSON object",
			Description: "Output a valid JSON object {...} instead of plain text",
			Kind:        FieldCheckbox,
			Default:     false,
		},
		{
			Name:        "output_column",
			Label:       "Output column name",
			Description: "The column to store the output in - will be created if it does not exist.",
			Kind:        FieldText,
			Default:     DefaultOutputColumn,
			Required:    true,
		},
	}}

	if !staticKey {
		form.Fields = append(form.Fields, Field{
			Name:        "api_key",
			Label:       "API key",
			Description: "Your OpenAI API key",
			Kind:        FieldPassword,
			Required:    true,
		})
	}
	return form
}
