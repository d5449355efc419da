package classgen

import "fmt"

// Error codes for structural problems in a declaration tree
const (
	ErrorCodeUnregisteredContainer = "UNREGISTERED_CONTAINER"
	ErrorCodeUnsupportedNestedKind = "UNSUPPORTED_NESTED_KIND"
	ErrorCodeUnregisteredReference = "UNREGISTERED_REFERENCE"
	ErrorCodeForwardTierReference  = "FORWARD_TIER_REFERENCE"
	ErrorCodeSingletonConstructor  = "SINGLETON_CONSTRUCTOR"
	ErrorCodeDuplicateClass        = "DUPLICATE_CLASS"
	ErrorCodeInvalidDeclaration    = "INVALID_DECLARATION"
)

// Sentinels for errors.Is
var (
	ErrUnregisteredContainer = &ConfigError{Code: ErrorCodeUnregisteredContainer}
	ErrUnsupportedNestedKind = &ConfigError{Code: ErrorCodeUnsupportedNestedKind}
	ErrUnregisteredReference = &ConfigError{Code: ErrorCodeUnregisteredReference}
	ErrForwardTierReference  = &ConfigError{Code: ErrorCodeForwardTierReference}
	ErrSingletonConstructor  = &ConfigError{Code: ErrorCodeSingletonConstructor}
	ErrDuplicateClass        = &ConfigError{Code: ErrorCodeDuplicateClass}
	ErrInvalidDeclaration    = &ConfigError{Code: ErrorCodeInvalidDeclaration}
)

// ConfigError is a fatal mismatch between a declaration tree and what the
// class-file format can express. The run produces no output.
type ConfigError struct {
	Code   string
	Class  string // declaration being synthesized
	Detail string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Class == "" {
		return fmt.Sprintf("classgen: %s: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("classgen: %s in %s: %s", e.Code, e.Class, e.Detail)
}

// Is matches any ConfigError carrying the same code.
func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	return ok && t.Code == e.Code
}

func configError(code, class, format string, args ...any) error {
	return &ConfigError{Code: code, Class: class, Detail: fmt.Sprintf(format, args...)}
}

// IoError reports a failed artifact write. Remaining writes are skipped.
type IoError struct {
	Artifact string
	Cause    error
}

// Error implements the error interface
func (e *IoError) Error() string {
	return fmt.Sprintf("classgen: writing %s: %v", e.Artifact, e.Cause)
}

func (e *IoError) Unwrap() error {
	return e.Cause
}
