// Package apperr provides centralized, categorized error wrapping for the
// ingest service and the VAD/dialogue worker.
package apperr

import (
	stderrors "errors"
	"fmt"
)

// Category groups errors for logging and metrics without leaking call-stack
// detail into the error string itself.
type Category string

const (
	CategoryAuth       Category = "auth"
	CategoryValidation Category = "validation"
	CategoryStorage    Category = "storage"
	CategoryDatabase   Category = "database"
	CategoryDecode     Category = "decode"
	CategoryVAD        Category = "vad"
	CategoryDialogue   Category = "dialogue"
	CategoryWorker     Category = "worker"
	CategoryConfig     Category = "config"
	CategoryHTTP       Category = "http"
)

// Error wraps an underlying error with a component, category and free-form
// context, in the shape consumed by internal/logging for structured output.
type Error struct {
	err       error
	component string
	category  Category
	context   map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.component, e.category)
	}
	return fmt.Sprintf("%s: %s: %v", e.component, e.category, e.err)
}

// Unwrap allows errors.Is/errors.As to reach the wrapped error.
func (e *Error) Unwrap() error {
	return e.err
}

// Component returns the component name set on the error.
func (e *Error) Component() string {
	return e.component
}

// Category returns the error category.
func (e *Error) Category() Category {
	return e.category
}

// Context returns the free-form context attached to the error.
func (e *Error) Context() map[string]any {
	return e.context
}

// Builder accumulates fields before producing an *Error via Build.
type Builder struct {
	e *Error
}

// New starts a builder wrapping an existing error.
func New(err error) *Builder {
	return &Builder{e: &Error{err: err, context: make(map[string]any)}}
}

// Newf starts a builder around a freshly formatted error.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the owning package/subsystem name.
func (b *Builder) Component(name string) *Builder {
	b.e.component = name
	return b
}

// Category sets the error category.
func (b *Builder) Category(c Category) *Builder {
	b.e.category = c
	return b
}

// Context attaches a key/value pair of diagnostic context. Never pass
// secret material (tokens, token hashes) here — it reaches the logger.
func (b *Builder) Context(key string, value any) *Builder {
	b.e.context[key] = value
	return b
}

// Build finalizes and returns the *Error.
func (b *Builder) Build() *Error {
	return b.e
}

// Is reports whether err, or any error in its chain, matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// CategoryOf extracts the Category from err if it (or something it wraps)
// is an *Error, otherwise returns an empty Category.
func CategoryOf(err error) Category {
	var e *Error
	if stderrors.As(err, &e) {
		return e.category
	}
	return ""
}
