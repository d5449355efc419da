package schema

// Error codes for schema construction failures.
const (
	// ErrorCodeUnknownType indicates a reference to a type that is not declared
	ErrorCodeUnknownType = "UNKNOWN_TYPE"

	// ErrorCodeCyclicInheritance indicates an interface that implements itself
	ErrorCodeCyclicInheritance = "CYCLIC_INHERITANCE"

	// ErrorCodeWrongRootKind indicates a root operation type that is not an object
	ErrorCodeWrongRootKind = "WRONG_ROOT_KIND"

	// ErrorCodeDuplicateType indicates two base definitions share a name
	ErrorCodeDuplicateType = "DUPLICATE_TYPE"

	// ErrorCodeInvalidDefault indicates a default value that does not fit its declared type
	ErrorCodeInvalidDefault = "INVALID_DEFAULT"

	// ErrorCodeParse indicates the schema source could not be parsed
	ErrorCodeParse = "PARSE"
)

var (
	ErrUnknownType       = &SchemaError{Code: ErrorCodeUnknownType}
	ErrCyclicInheritance = &SchemaError{Code: ErrorCodeCyclicInheritance}
	ErrWrongRootKind     = &SchemaError{Code: ErrorCodeWrongRootKind}
	ErrDuplicateType     = &SchemaError{Code: ErrorCodeDuplicateType}
	ErrInvalidDefault    = &SchemaError{Code: ErrorCodeInvalidDefault}
	ErrParse             = &SchemaError{Code: ErrorCodeParse}
)

// SchemaError reports why a schema graph could not be built. Compare against
// the Err* sentinels with errors.Is.
type SchemaError struct {
	Code    string // e.g. "UNKNOWN_TYPE"
	Type    string // offending type name, if any
	Context string // where the problem was found, e.g. "User.friends"
	Err     error  // underlying cause
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	msg := "schema: " + e.Code
	if e.Type != "" {
		msg += " " + e.Type
	}
	if e.Context != "" {
		msg += " (at " + e.Context + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Is matches any SchemaError carrying the same code.
func (e *SchemaError) Is(target error) bool {
	t, ok := target.(*SchemaError)
	return ok && t.Code == e.Code
}

func unknownType(name, context string) error {
	return &SchemaError{Code: ErrorCodeUnknownType, Type: name, Context: context}
}
