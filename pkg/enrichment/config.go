package enrichment

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/enrichgpt/pkg/credential"
	"github.com/jmylchreest/enrichgpt/pkg/llm"
)

// DefaultOutputColumn is the output column preselected in the form.
const DefaultOutputColumn = "prompt_output"

// Config is one enrichment run's configuration.
type Config struct {
	Model        string `yaml:"model" json:"model" validate:"required,model"`
	Prompt       string `yaml:"prompt" json:"prompt" validate:"required,notblank"`
	SystemPrompt string `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	JSONFormat   bool   `yaml:"json_format,omitempty" json:"json_format,omitempty"`
	ImageURL     string `yaml:"image_url,omitempty" json:"image_url,omitempty"`
	OutputColumn string `yaml:"output_column" json:"output_column" validate:"required,sqlident"`

	// APIKey is a raw key as typed into the form. Prepare moves it into the
	// stash and clears it.
	APIKey string `yaml:"api_key,omitempty" json:"-"`
	// Secret names a key in the secret store.
	Secret string `yaml:"secret,omitempty" json:"secret,omitempty"`

	// Credential is the reference resolved at enrichment time.
	Credential credential.Reference `yaml:"-" json:"-"`
}

// ResolvedModel returns the catalog entry for c.Model.
func (c Config) ResolvedModel() (llm.Model, error) {
	return llm.LookupModel(c.Model)
}

// LoadConfig reads a Config from a YAML file. Missing fields fall back to
// the form defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Config{
		Model:        llm.DefaultModel,
		OutputColumn: DefaultOutputColumn,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// --- Validation ---

// FieldError is one failed check.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError reports a configuration rejected before any row is
// processed.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "invalid enrichment config: " + strings.Join(parts, "; ")
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

// JSONMentionMessage is reported when JSON output is requested without
// asking for JSON in either prompt.
const JSONMentionMessage = `The prompt or system prompt must contain the word "JSON" when JSON format is selected.`

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("sqlident", validateSQLIdent)
	_ = v.RegisterValidation("model", validateModel)
	_ = v.RegisterValidation("notblank", validateNotBlank)
	v.RegisterStructValidation(validateJSONMention, Config{})
	return v
}

func validateSQLIdent(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if strings.TrimSpace(name) == "" || len(name) > 128 {
		return false
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateModel(fl validator.FieldLevel) bool {
	return llm.IsSupportedModel(fl.Field().String())
}

func validateJSONMention(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	if !cfg.JSONFormat {
		return
	}
	if m, err := llm.LookupModel(cfg.Model); err == nil && m.Kind == llm.KindText && !m.JSONMode {
		sl.ReportError(cfg.JSONFormat, "json_format", "JSONFormat", "jsonunsupported", cfg.Model)
	}
	if !strings.Contains(strings.ToLower(cfg.Prompt), "json") &&
		!strings.Contains(strings.ToLower(cfg.SystemPrompt), "json") {
		sl.ReportError(cfg.Prompt, "prompt", "Prompt", "jsonmention", "")
	}
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		switch e.Field() {
		case "prompt":
			return "Prompt is required."
		case "output_column":
			return "Column is required."
		}
		return "is required"
	case "model":
		return fmt.Sprintf("unsupported model %q", e.Value())
	case "sqlident":
		return "must be a valid column name"
	case "jsonmention":
		return JSONMentionMessage
	case "jsonunsupported":
		return fmt.Sprintf("model %s cannot produce JSON objects", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// Validate checks c without touching credentials.
func (c Config) Validate() error {
	verr := &ValidationError{}
	c.collect(verr)
	if len(verr.Errors) > 0 {
		return verr
	}
	return nil
}

func (c Config) collect(verr *ValidationError) {
	err := validate.Struct(c)
	if err == nil {
		return
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		verr.add("config", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		verr.add(fe.Field(), fieldMessage(fe))
	}
}

// PrepareOptions controls how Prepare handles credentials.
type PrepareOptions struct {
	// StaticKey is true when a deployment-level key is configured; raw keys
	// are then neither required nor stashed.
	StaticKey bool
	// Stash receives raw keys.
	Stash credential.Stash
	// KeyPrefixes overrides credential.DefaultKeyPrefixes.
	KeyPrefixes []string
}

// Prepare validates c and turns its raw key or secret name into a
// credential reference. On success the returned Config carries no raw key.
func Prepare(c Config, opts PrepareOptions) (Config, error) {
	verr := &ValidationError{}
	c.collect(verr)

	switch {
	case opts.StaticKey:
		c.APIKey = ""
	case c.APIKey != "":
		ref, err := credential.StashKey(opts.Stash, c.APIKey, opts.KeyPrefixes...)
		switch {
		case errors.Is(err, credential.ErrInvalidKeyFormat):
			verr.add("api_key", keyMessage(opts.KeyPrefixes))
		case err != nil:
			verr.add("api_key", err.Error())
		default:
			c.Credential = ref
			c.APIKey = ""
		}
	case c.Secret != "":
		c.Credential = credential.SecretName(c.Secret)
	case c.Credential.IsZero():
		verr.add("api_key", "API key is required.")
	}

	if len(verr.Errors) > 0 {
		return Config{}, verr
	}
	return c, nil
}

func keyMessage(prefixes []string) string {
	if len(prefixes) == 0 {
		prefixes = credential.DefaultKeyPrefixes
	}
	return "API key must start with " + strings.Join(prefixes, " or ")
}
