package settings

import (
	"errors"
	"fmt"
)

// ValidationKind identifies which invariant a rejected mutation would have broken
type ValidationKind int

const (
	InvalidModel ValidationKind = iota + 1
	EmptyURL
	InvalidMoleculeName
)

func (k ValidationKind) String() string {
	switch k {
	case InvalidModel:
		return "InvalidModel"
	case EmptyURL:
		return "EmptyUrl"
	case InvalidMoleculeName:
		return "InvalidMoleculeName"
	default:
		return "Unknown"
	}
}

// ValidationError reports a rejected field mutation. The settings the setter was
// called with remain the valid state.
type ValidationError struct {
	Kind  ValidationKind
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	field := e.Field
	if field == "" {
		field = "settings"
	}
	switch e.Kind {
	case InvalidModel:
		return fmt.Sprintf("invalid model %q for %s", e.Value, field)
	case EmptyURL:
		return fmt.Sprintf("%s URL cannot be empty", field)
	case InvalidMoleculeName:
		return fmt.Sprintf("unknown molecule name format %q", e.Value)
	default:
		return "invalid settings value"
	}
}

// Is matches any ValidationError of the same kind, so callers can compare against the
// Err* sentinels with errors.Is.
func (e *ValidationError) Is(target error) bool {
	var t *ValidationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Sentinels for errors.Is
var (
	ErrInvalidModel        = &ValidationError{Kind: InvalidModel}
	ErrEmptyURL            = &ValidationError{Kind: EmptyURL}
	ErrInvalidMoleculeName = &ValidationError{Kind: InvalidMoleculeName}
)

// ErrUninitialized is returned by session setters called before Initialize
var ErrUninitialized = errors.New("settings session is not initialized")

// KindOf returns the validation kind carried by err, or 0
func KindOf(err error) ValidationKind {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Kind
	}
	return 0
}
