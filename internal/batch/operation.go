package batch

import (
	"fmt"
	"strings"
)

// Kind distinguishes operation kinds.
type Kind int

const (
	// KindCreate inserts a new entity.
	KindCreate Kind = iota + 1
	// KindUpdate applies fields to an existing entity looked up by key.
	KindUpdate
	// KindDelete removes an existing entity looked up by key.
	KindDelete
	// KindCustom runs a registered handler with the session and structured data.
	KindCustom
)

// Execution priorities. Lower runs first within a page.
const (
	PriorityDelete = 0
	PriorityUpdate = 1
	PriorityCustom = 1
	PriorityCreate = 2
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Priority returns the execution priority for the kind.
func (k Kind) Priority() int {
	switch k {
	case KindDelete:
		return PriorityDelete
	case KindUpdate:
		return PriorityUpdate
	case KindCustom:
		return PriorityCustom
	default:
		return PriorityCreate
	}
}

// ParseKind parses a kind name as written in batch files.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create":
		return KindCreate, nil
	case "update":
		return KindUpdate, nil
	case "delete":
		return KindDelete, nil
	case "custom":
		return KindCustom, nil
	default:
		return 0, fmt.Errorf("invalid operation kind %q: must be create, update, delete, or custom", s)
	}
}

func (k Kind) valid() bool {
	return k >= KindCreate && k <= KindCustom
}

// Field is one named value in an operation payload.
type Field struct {
	Name  string
	Value any
}

// F builds a Field.
func F(name string, value any) Field {
	return Field{Name: name, Value: value}
}

// Fields is an ordered mapping of field name to value.
// Order is preserved so repositories emit columns in the order callers wrote them.
type Fields []Field

// Get returns the value of the named field.
func (f Fields) Get(name string) (any, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// Has reports whether the named field is present.
func (f Fields) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

// Set returns a copy of f with name set to value, replacing an existing entry in place.
func (f Fields) Set(name string, value any) Fields {
	out := f.Clone()
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, Field{Name: name, Value: value})
}

// Names returns the field names in order.
func (f Fields) Names() []string {
	names := make([]string, len(f))
	for i, field := range f {
		names[i] = field.Name
	}
	return names
}

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	copy(out, f)
	return out
}

// Map returns the fields as an unordered map.
func (f Fields) Map() map[string]any {
	m := make(map[string]any, len(f))
	for _, field := range f {
		m[field.Name] = field.Value
	}
	return m
}

// Operation is one queued write. The queue never mutates an Operation once it is queued.
type Operation struct {
	// Seq is the submission sequence number assigned by the queue (1-based).
	Seq int64

	Kind Kind

	// Entity is the target repository. Nil for KindCustom.
	Entity Repository

	// Key identifies the target row for KindUpdate and KindDelete.
	Key any

	// Fields is the column payload, or the structured data passed to a custom handler.
	Fields Fields

	// Handler names the registered handler for KindCustom.
	Handler string

	// Priority orders execution within a page. Lower runs first.
	Priority int
}

// EntityName returns the entity name of the target repository, or "" for custom operations.
func (op Operation) EntityName() string {
	if op.Entity == nil {
		return ""
	}
	return op.Entity.Entity()
}

// String renders the operation for logs and error messages.
func (op Operation) String() string {
	switch op.Kind {
	case KindCustom:
		return fmt.Sprintf("#%d custom %s", op.Seq, op.Handler)
	case KindCreate:
		return fmt.Sprintf("#%d create %s", op.Seq, op.EntityName())
	default:
		return fmt.Sprintf("#%d %s %s[%v]", op.Seq, op.Kind, op.EntityName(), op.Key)
	}
}
