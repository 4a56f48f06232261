package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

// Format is the encoding of raw document content.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat inspects content rather than trusting a file extension:
// anything that opens like a JSON object or array is JSON, everything else
// is treated as YAML. YAML flow mappings at the top level are read as JSON.
func DetectFormat(raw []byte) Format {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

var (
	kebabPattern     = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)
	semverPattern    = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	awsRegionPattern = regexp.MustCompile(`^[a-z]{2}-[a-z]+-\d+$`)
)

// Validator checks raw content against the configuration schema.
// It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator with the schema's custom rules registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON paths, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "kebab", matchString(kebabPattern))
	mustRegister(v, "semver", matchString(semverPattern))
	mustRegister(v, "awsregion", matchString(awsRegionPattern))
	mustRegister(v, "jsonobject", func(fl validator.FieldLevel) bool {
		trimmed := bytes.TrimSpace(fl.Field().Bytes())
		return len(trimmed) > 0 && trimmed[0] == '{'
	})

	v.RegisterStructValidation(validateCredentials, LLMCredentials{})
	v.RegisterStructValidation(validateMemory, ConversationMemory{})

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("schema: registering %q: %v", tag, err))
	}
}

func matchString(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

func validateCredentials(sl validator.StructLevel) {
	c := sl.Current().Interface().(LLMCredentials)
	if (c.AnthropicBedrock == nil) == (c.OpenAI == nil) {
		sl.ReportError(c.AnthropicBedrock, "anthropic_bedrock", "AnthropicBedrock", "oneprovider", "")
	}
}

func validateMemory(sl validator.StructLevel) {
	m := sl.Current().Interface().(ConversationMemory)
	if m.SummarizeAfterTurns > m.MaxTurns {
		sl.ReportError(m.SummarizeAfterTurns, "summarize_after_turns", "SummarizeAfterTurns", "maxturns", "")
	}
}

var defaultValidator = sync.OnceValue(NewValidator)

// Validate parses raw with the shared Validator.
func Validate(raw []byte) (*Document, error) {
	return defaultValidator().Validate(raw)
}

// Check re-validates an already decoded document with the shared Validator.
func Check(doc *Document) error {
	return defaultValidator().Check(doc)
}

// Validate parses raw JSON or YAML into a Document, applies defaults and
// checks every rule. Any failure is a *ValidationError.
func (v *Validator) Validate(raw []byte) (*Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, newValidationError("", "document is empty")
	}

	data, err := toJSON(raw)
	if err != nil {
		return nil, err
	}

	doc := newDocument()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(doc); err != nil {
		return nil, decodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, newValidationError("", "unexpected data after the document")
	}

	if err := v.Check(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Check applies defaults to doc and validates it. Used after a caller has
// modified a decoded document, e.g. to change its name.
func (v *Validator) Check(doc *Document) error {
	if doc == nil {
		return newValidationError("", "document is empty")
	}
	applyDefaults(doc)

	err := v.validate.Struct(doc)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newValidationError("", "%v", err)
	}
	out := &ValidationError{FieldErrors: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.FieldErrors = append(out.FieldErrors, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: message(fe),
		})
	}
	return out
}

func toJSON(raw []byte) ([]byte, error) {
	if DetectFormat(raw) == FormatJSON {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, decodeError(err)
		}
		return raw, nil
	}
	data, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, newValidationError("", "malformed YAML: %v", err)
	}
	return data, nil
}

func decodeError(err error) *ValidationError {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return newValidationError("", "malformed JSON at offset %d: %v", syntaxErr.Offset, syntaxErr)
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return newValidationError("", "document must be a mapping, got %s", typeErr.Value)
		}
		return newValidationError(typeErr.Field, "must be %s, got %s", describeType(typeErr.Type), typeErr.Value)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return newValidationError("", "document is truncated")
	}

	msg := err.Error()
	if name, ok := strings.CutPrefix(msg, "json: unknown field "); ok {
		if unquoted, uerr := strconv.Unquote(name); uerr == nil {
			name = unquoted
		}
		return newValidationError(name, "unknown field")
	}
	return newValidationError("", "%s", msg)
}

func describeType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int64, reflect.Int32:
		return "an integer"
	case reflect.Float64, reflect.Float32:
		return "a number"
	case reflect.Slice:
		return "a list"
	case reflect.Struct, reflect.Map, reflect.Ptr:
		return "an object"
	default:
		return t.String()
	}
}

// fieldPath drops the root type name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return boundMessage(fe, "at least")
	case "max":
		return boundMessage(fe, "at most")
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "kebab":
		return "must be lowercase kebab-case: letters, digits and inner hyphens, at least two characters"
	case "semver":
		return "must look like MAJOR.MINOR.PATCH"
	case "awsregion":
		return "must be an AWS region such as us-east-1"
	case "jsonobject":
		return "must be an object"
	case "oneprovider":
		return "exactly one of anthropic_bedrock or openai must be configured"
	case "maxturns":
		return "must not exceed max_turns"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func boundMessage(fe validator.FieldError, bound string) string {
	switch fe.Kind() {
	case reflect.String:
		return fmt.Sprintf("must be %s %s characters", bound, fe.Param())
	case reflect.Slice, reflect.Map, reflect.Array:
		return fmt.Sprintf("must contain %s %s items", bound, fe.Param())
	default:
		return fmt.Sprintf("must be %s %s", bound, fe.Param())
	}
}
