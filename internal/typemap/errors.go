package typemap

import "github.com/okra-platform/kgql/internal/decl"

// ErrorCodeInputNotAssignable indicates an input-side type that cannot be
// stored where the read-side type is expected
const ErrorCodeInputNotAssignable = "INPUT_NOT_ASSIGNABLE"

var ErrInputNotAssignable = &TypeMappingError{Code: ErrorCodeInputNotAssignable}

// TypeMappingError reports a schema type that cannot be mapped consistently.
type TypeMappingError struct {
	Code    string
	Type    string // schema type expression
	Context string // owner and member, e.g. "UserInput.tags"
	Path    []int  // nested type-argument path of the mismatch
	Err     error
}

// Error implements the error interface
func (e *TypeMappingError) Error() string {
	msg := "typemap: " + e.Code + " " + e.Type
	if e.Context != "" {
		msg += " (at " + e.Context + ")"
	}
	msg += " path " + decl.FormatPath(e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TypeMappingError) Unwrap() error {
	return e.Err
}

// Is matches any TypeMappingError carrying the same code.
func (e *TypeMappingError) Is(target error) bool {
	t, ok := target.(*TypeMappingError)
	return ok && t.Code == e.Code
}
