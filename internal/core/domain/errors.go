package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	// ErrRetrieverUnavailable marks one source's store error or timeout.
	// Distinguishable from an empty (but successful) result list.
	ErrRetrieverUnavailable = errors.New("retriever unavailable")

	// ErrFusionUnavailable means every contributing retriever failed.
	ErrFusionUnavailable = errors.New("fusion unavailable")

	// ErrContextTooSmall means the packing budget cannot fit one snippet.
	ErrContextTooSmall = errors.New("context budget too small")

	// ErrGenerationFailed marks a failed external generation call.
	ErrGenerationFailed = errors.New("generation failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

func errUnknownValue(raw string) error {
	return fmt.Errorf("unknown value %q", raw)
}

// GenerationError carries the packed context that was sent to the generator,
// for diagnostic logging. The call is never retried here.
type GenerationError struct {
	Operation string
	Context   string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Operation, ErrGenerationFailed, e.Err)
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrGenerationFailed, e.Err}
}
