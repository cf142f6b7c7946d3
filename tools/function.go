package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/pkg/schema"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report arguments by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Func is the behavior of a tool with arguments of type I.
type Func[I any] func(ctx context.Context, in *I) (string, error)

// Function is a tool backed by a Go function. The argument schema is derived
// from I, and `validate` struct tags are checked before the function runs.
type Function[I any] struct {
	name        string
	description string
	parameters  *jsonschema.Schema
	fn          Func[I]
}

var _ ITool = (*Function[struct{}])(nil)

// NewFunction returns a tool for the function. I must be a struct.
func NewFunction[I any](name, description string, fn Func[I]) (*Function[I], error) {
	if fn == nil {
		return nil, errors.Wrapf(ErrInvalidTool, "%s: nil function", name)
	}
	sc, err := schema.For[I]()
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidTool, "%s: %v", name, err)
	}
	return &Function[I]{
		name:        name,
		description: description,
		parameters:  sc.Parameters,
		fn:          fn,
	}, nil
}

func (f *Function[I]) Name() string {
	return f.name
}

func (f *Function[I]) Description() string {
	return f.description
}

func (f *Function[I]) Parameters() *jsonschema.Schema {
	return f.parameters
}

// Bind decodes the arguments into I.
func (f *Function[I]) Bind(arguments string) (Invocation, error) {
	in, err := Decode[I](f.name, arguments)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (string, error) {
		return f.fn(ctx, in)
	}, nil
}

// Run calls the function directly.
func (f *Function[I]) Run(ctx context.Context, in *I) (string, error) {
	if err := validateArguments(f.name, in); err != nil {
		return "", err
	}
	return f.fn(ctx, in)
}

// Decode parses the arguments of a tool call into I.
// Unknown fields, trailing data and values violating `validate` tags are rejected.
// An empty string is treated as an empty object.
func Decode[I any](tool string, arguments string) (*I, error) {
	data := bytes.TrimSpace([]byte(arguments))
	if len(data) == 0 {
		data = []byte("{}")
	}
	if data[0] != '{' {
		return nil, &ArgumentError{Tool: tool, Reason: "arguments must be a JSON object"}
	}

	in := new(I)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(in); err != nil {
		return nil, decodeError(tool, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ArgumentError{Tool: tool, Reason: "unexpected data after the arguments object"}
	}
	if err := validateArguments(tool, in); err != nil {
		return nil, err
	}
	return in, nil
}

func decodeError(tool string, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ArgumentError{
			Tool:     tool,
			Argument: typeErr.Field,
			Reason:   "expected " + typeErr.Type.String() + ", got " + typeErr.Value,
		}
	}
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		if unquoted, uerr := strconv.Unquote(field); uerr == nil {
			field = unquoted
		}
		return &ArgumentError{Tool: tool, Argument: field, Reason: "unknown argument"}
	}
	return &ArgumentError{Tool: tool, Reason: "malformed JSON: " + err.Error()}
}

func validateArguments(tool string, in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ArgumentError{
			Tool:     tool,
			Argument: argumentPath(fe.Namespace()),
			Reason:   ruleReason(fe),
		}
	}
	return &ArgumentError{Tool: tool, Reason: err.Error()}
}

// argumentPath drops the root struct name from a validator namespace.
func argumentPath(ns string) string {
	_, path, found := strings.Cut(ns, ".")
	if !found {
		return ns
	}
	return path
}

func ruleReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be an email address"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	if fe.Param() != "" {
		return "failed on the '" + fe.Tag() + "=" + fe.Param() + "' rule"
	}
	return "failed on the '" + fe.Tag() + "' rule"
}
