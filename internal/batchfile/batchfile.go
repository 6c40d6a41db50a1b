// Package batchfile reads YAML batch files into queue operations.
//
// A batch file lists operations in the order they are queued:
//
//	operations:
//	  - op: create
//	    entity: player
//	    fields: {id: p1, tag: ace}
//	  - op: update
//	    entity: player
//	    key: p1
//	    fields: {rating: 1100}
//	  - op: delete
//	    entity: match
//	    key: m7
//	  - op: custom
//	    handler: match.report
//	    fields: {match_id: m1, winner_id: p1, score: "2-0"}
//
// Field order inside fields is preserved.
package batchfile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tourneyq/internal/batch"
)

// Validation error codes (E200-E299)
const (
	ErrSyntax          = "E200" // not valid YAML or wrong document shape
	ErrInvalidKind     = "E201" // op missing or not create/update/delete/custom
	ErrUnknownEntity   = "E202" // entity not registered
	ErrMissingKey      = "E203" // update/delete without key
	ErrUnknownHandler  = "E204" // custom handler not registered
	ErrUnexpectedField = "E205" // attribute not valid for this op
	ErrInvalidFields   = "E206" // fields is not a mapping or repeats a name
)

// ValidationError describes one problem in a batch file.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every problem found in one file.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...).Error()
}

// Spec is one resolved operation ready to queue.
type Spec struct {
	Line    int
	Kind    batch.Kind
	Entity  batch.Repository
	Key     any
	Handler string
	Fields  batch.Fields
}

// String renders the spec for logs and validate output.
func (s Spec) String() string {
	switch {
	case s.Kind == batch.KindCustom:
		return fmt.Sprintf("line %d: custom %s", s.Line, s.Handler)
	case s.Key != nil:
		return fmt.Sprintf("line %d: %s %s[%v]", s.Line, s.Kind, s.Entity.Entity(), s.Key)
	default:
		return fmt.Sprintf("line %d: %s %s", s.Line, s.Kind, s.Entity.Entity())
	}
}

type document struct {
	Operations []rawOperation `yaml:"operations"`
}

type rawOperation struct {
	Op      string    `yaml:"op"`
	Entity  string    `yaml:"entity"`
	Key     yaml.Node `yaml:"key"`
	Handler string    `yaml:"handler"`
	Fields  yaml.Node `yaml:"fields"`

	line    int
	unknown []string
}

var attributes = map[string]bool{"op": true, "entity": true, "key": true, "handler": true, "fields": true}

// UnmarshalYAML records the operation's line and any unrecognized attributes.
func (r *rawOperation) UnmarshalYAML(node *yaml.Node) error {
	type plain rawOperation
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = rawOperation(p)
	r.line = node.Line
	for i := 0; i+1 < len(node.Content); i += 2 {
		if name := node.Content[i].Value; !attributes[name] {
			r.unknown = append(r.unknown, name)
		}
	}
	return nil
}

// Parse reads a batch file and resolves entity and handler names against reg.
// It reports every problem it finds as ValidationErrors rather than stopping
// at the first.
func Parse(r io.Reader, reg *batch.Registry) ([]Spec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []Spec{}, nil
		}
		return nil, ValidationErrors{{Field: "document", Message: err.Error(), Code: ErrSyntax}}
	}

	specs := make([]Spec, 0, len(doc.Operations))
	var errs ValidationErrors
	for i, raw := range doc.Operations {
		spec, opErrs := resolve(fmt.Sprintf("operations[%d]", i), raw, reg)
		if len(opErrs) > 0 {
			errs = append(errs, opErrs...)
			continue
		}
		specs = append(specs, spec)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return specs, nil
}

func resolve(path string, raw rawOperation, reg *batch.Registry) (Spec, ValidationErrors) {
	var errs ValidationErrors
	fail := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   path + "." + field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			Line:    raw.line,
		})
	}

	spec := Spec{Line: raw.line, Handler: raw.Handler}

	for _, name := range raw.unknown {
		fail(name, ErrUnexpectedField, "unknown attribute %q", name)
	}

	kind, err := batch.ParseKind(raw.Op)
	if err != nil {
		fail("op", ErrInvalidKind, "%v", err)
		return spec, errs
	}
	spec.Kind = kind

	if kind == batch.KindCustom {
		if raw.Entity != "" {
			fail("entity", ErrUnexpectedField, "custom operations take no entity")
		}
		if !raw.Key.IsZero() {
			fail("key", ErrUnexpectedField, "custom operations take no key")
		}
		if raw.Handler == "" {
			fail("handler", ErrUnknownHandler, "handler is required for custom operations")
		} else if _, ok := reg.Handler(raw.Handler); !ok {
			fail("handler", ErrUnknownHandler, "handler %q is not registered (known: %v)", raw.Handler, reg.Handlers())
		}
	} else {
		if raw.Handler != "" {
			fail("handler", ErrUnexpectedField, "only custom operations take a handler")
		}
		repo, ok := reg.Repository(raw.Entity)
		switch {
		case raw.Entity == "":
			fail("entity", ErrUnknownEntity, "entity is required for %s operations", kind)
		case !ok:
			fail("entity", ErrUnknownEntity, "entity %q is not registered (known: %v)", raw.Entity, reg.Entities())
		default:
			spec.Entity = repo
		}

		switch kind {
		case batch.KindCreate:
			if !raw.Key.IsZero() {
				fail("key", ErrUnexpectedField, "create takes its key from fields")
			}
		case batch.KindUpdate, batch.KindDelete:
			key, err := decodeScalar(&raw.Key)
			if err != nil {
				fail("key", ErrMissingKey, "%v", err)
			} else if key == nil {
				fail("key", ErrMissingKey, "key is required for %s operations", kind)
			}
			spec.Key = key
		}
		if kind == batch.KindDelete && !raw.Fields.IsZero() {
			fail("fields", ErrUnexpectedField, "delete takes no fields")
		}
	}

	fields, err := decodeFields(&raw.Fields)
	if err != nil {
		fail("fields", ErrInvalidFields, "%v", err)
	}
	spec.Fields = fields

	return spec, errs
}

// decodeFields walks a mapping node pair by pair so the declared order survives.
func decodeFields(node *yaml.Node) (batch.Fields, error) {
	if node.IsZero() {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("fields must be a mapping, got %s", nodeKind(node))
	}

	fields := make(batch.Fields, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if seen[name] {
			return nil, fmt.Errorf("field %q repeated", name)
		}
		seen[name] = true

		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields = append(fields, batch.F(name, value))
	}
	return fields, nil
}

func decodeScalar(node *yaml.Node) (any, error) {
	if node.IsZero() {
		return nil, nil
	}
	if node.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("key must be a scalar, got %s", nodeKind(node))
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	default:
		return "scalar"
	}
}

// Apply queues specs on q in file order. It stops at the first operation the
// queue rejects; operations already queued stay queued.
func Apply(ctx context.Context, q *batch.Queue, specs []Spec) error {
	for _, s := range specs {
		if err := q.Enqueue(ctx, s.Kind, s.Entity, s.Fields, s.Key, s.Handler); err != nil {
			return fmt.Errorf("line %d: %w", s.Line, err)
		}
	}
	return nil
}
