package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"path"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	addTodoSchema = "add_todo.json"
	todoIDSchema  = "todo_id.json"
	signUpSchema  = "sign_up.json"
	signInSchema  = "sign_in.json"
)

// maxBodySize bounds every request body.
const maxBodySize = 64 << 10

type AddTodoInput struct {
	Title string `json:"title"`
}

type TodoIDInput struct {
	TodoID uint64 `json:"todoId"`
}

type SignUpInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// Validator checks request documents against the embedded JSON schemas and
// decodes them into input structs.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	for _, entry := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, err
		}

		if err := compiler.AddResource(entry.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", entry.Name(), err)
		}
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema)}

	for _, entry := range entries {
		schema, err := compiler.Compile(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", entry.Name(), err)
		}

		v.schemas[entry.Name()] = schema
	}

	return v, nil
}

// Decode reads a JSON document from body, validates it against the named
// schema and stores it in dst.
func (v *Validator) Decode(name string, body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.UseNumber()

	var doc any
	if err := decoder.Decode(&doc); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			doc = map[string]any{}
		case errors.As(err, &tooLarge):
			return &ValidationError{Fields: []FieldError{{Message: "request body is too large"}}}
		default:
			return &ValidationError{Fields: []FieldError{{Message: "request body is not valid JSON"}}}
		}
	}

	return v.DecodeValue(name, doc, dst)
}

// DecodeValue validates an already decoded document, e.g. one built from a
// form, and stores it in dst.
func (v *Validator) DecodeValue(name string, doc any, dst any) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %s", name)
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return toValidationError(ve)
		}
		return err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     dst,
		DecodeHook: integerHook,
	})
	if err != nil {
		return err
	}

	if err := decoder.Decode(doc); err != nil {
		return &ValidationError{Fields: []FieldError{{Message: err.Error()}}}
	}

	return nil
}

// integerHook converts numbers such as 1.0 or 1e3, which the schemas accept
// as integers, into integer fields.
func integerHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	n, ok := data.(json.Number)
	if !ok {
		return data, nil
	}

	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}

	r, ok := new(big.Rat).SetString(n.String())
	if !ok || !r.IsInt() {
		return nil, fmt.Errorf("%s is not an integer", n)
	}

	i := r.Num()
	if !i.IsInt64() {
		return nil, fmt.Errorf("%s is out of range", n)
	}

	return i.Int64(), nil
}

var quotedName = regexp.MustCompile(`'([^']+)'`)

func toValidationError(err *jsonschema.ValidationError) *ValidationError {
	fields := map[string]string{}
	collectFieldErrors(err, fields)

	result := &ValidationError{}
	for field, message := range fields {
		result.Fields = append(result.Fields, FieldError{Field: field, Message: message})
	}

	sort.Slice(result.Fields, func(i, j int) bool {
		return result.Fields[i].Field < result.Fields[j].Field
	})

	return result
}

// collectFieldErrors keeps the first leaf message per field.
func collectFieldErrors(err *jsonschema.ValidationError, fields map[string]string) {
	if len(err.Causes) > 0 {
		for _, cause := range err.Causes {
			collectFieldErrors(cause, fields)
		}
		return
	}

	field := strings.TrimPrefix(err.InstanceLocation, "/")
	if field == "" {
		// required and additionalProperties report on the parent object
		if m := quotedName.FindStringSubmatch(err.Message); m != nil {
			field = m[1]
		}
	}

	if _, ok := fields[field]; !ok {
		fields[field] = err.Message
	}
}

// limitBodies caps request bodies at maxBodySize for JSON and form handlers
// alike.
func limitBodies(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}
