package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
)

// FieldError is one violated constraint of a tool input.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func (f FieldError) String() string {
	switch f.Rule {
	case "required":
		return f.Field + " is required"
	case "notblank":
		return f.Field + " must not be blank"
	case "email_syntax":
		return f.Field + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", f.Field, f.Param)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", f.Field, f.Param)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", f.Field, f.Param)
	case "type":
		return fmt.Sprintf("%s must be of type %s", f.Field, f.Param)
	default:
		return fmt.Sprintf("%s failed %s", f.Field, f.Rule)
	}
}

// ValidationError reports a tool input rejected before dispatch.
type ValidationError struct {
	Tool   string       `json:"tool"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("invalid input for %s: %s", e.Tool, strings.Join(parts, "; "))
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("email_syntax", func(fl validator.FieldLevel) bool {
			return entity.IsValidEmail(fl.Field().String())
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		validate = v
	})
	return validate
}

// DecodeInput converts a model-supplied argument map into T and validates
// it against T's `validate` tags.
func DecodeInput[T any](toolName string, args map[string]interface{}) (T, error) {
	var in T
	if args == nil {
		args = map[string]interface{}{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return in, &ValidationError{Tool: toolName, Fields: []FieldError{{Field: "arguments", Rule: "type", Param: "object"}}}
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return in, &ValidationError{Tool: toolName, Fields: []FieldError{{Field: typeErr.Field, Rule: "type", Param: typeErr.Type.Kind().String()}}}
		}
		return in, &ValidationError{Tool: toolName, Fields: []FieldError{{Field: "arguments", Rule: "type", Param: "object"}}}
	}

	if err := inputValidator().Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return in, fmt.Errorf("validate %s input: %w", toolName, err)
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
		}
		return in, &ValidationError{Tool: toolName, Fields: fields}
	}
	return in, nil
}

// Handler runs a tool on a validated input.
type Handler[T any] func(ctx context.Context, in T) (*Result, error)

// TypedTool binds a typed input struct to a handler. The handler never sees
// an input that failed decoding or validation.
type TypedTool[T any] struct {
	name        string
	description string
	kind        Kind
	schema      map[string]interface{}
	handler     Handler[T]
}

func NewTypedTool[T any](name, description string, kind Kind, schema map[string]interface{}, handler Handler[T]) *TypedTool[T] {
	return &TypedTool[T]{
		name:        name,
		description: description,
		kind:        kind,
		schema:      schema,
		handler:     handler,
	}
}

func (t *TypedTool[T]) Name() string                   { return t.name }
func (t *TypedTool[T]) Description() string            { return t.description }
func (t *TypedTool[T]) Kind() Kind                     { return t.kind }
func (t *TypedTool[T]) Schema() map[string]interface{} { return t.schema }

func (t *TypedTool[T]) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	in, err := DecodeInput[T](t.name, args)
	if err != nil {
		return nil, err
	}
	return t.handler(ctx, in)
}
