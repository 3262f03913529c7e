package usecase

import "errors"

// Sentinel errors for the chat use case
var (
	ErrUserIDRequired  = errors.New("user ID is required")
	ErrMessageRequired = errors.New("message is required")
	ErrAllModelsFailed = errors.New("all model candidates failed")
)

// genericFailureMessage is what the caller sees on fatal exhaustion. Raw
// provider errors are never exposed on the stream.
const genericFailureMessage = "The assistant is unavailable right now. Please try again."
