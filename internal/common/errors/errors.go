// Package errors provides standardized error handling for the sales agent.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeRetrievalUnavailable  ErrorCode = "RETRIEVAL_UNAVAILABLE"
	ErrCodeGenerationUnavailable ErrorCode = "GENERATION_UNAVAILABLE"
	ErrCodeExtractionAmbiguous   ErrorCode = "EXTRACTION_AMBIGUOUS"
	ErrCodeCRMUnavailable        ErrorCode = "CRM_UNAVAILABLE"
	ErrCodeInvalidCatalogData    ErrorCode = "INVALID_CATALOG_DATA"

	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"

	ErrCodeConversationLoadFailed ErrorCode = "CONVERSATION_LOAD_FAILED"
	ErrCodeConversationSaveFailed ErrorCode = "CONVERSATION_SAVE_FAILED"
	ErrCodeLeadStoreFailed        ErrorCode = "LEAD_STORE_FAILED"
	ErrCodeFAQLookupFailed        ErrorCode = "FAQ_LOOKUP_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewRetrievalUnavailableError marks an embedding or index failure. The
// previous index keeps serving in degraded mode, so callers retry later.
func NewRetrievalUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalUnavailable,
		Message:   "Embedding service or vector index unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationUnavailableError marks a language-model failure; callers fall
// back to a templated response.
func NewGenerationUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationUnavailable,
		Message:   "Text generation service unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionAmbiguousError records that multiple candidate values were
// found for one slot; the most recent value was kept.
func NewExtractionAmbiguousError(slot, kept string, candidates []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionAmbiguous,
		Message:   "Multiple candidate values found during slot extraction",
		Details:   fmt.Sprintf("slot: %s, kept: %s", slot, kept),
		Retryable: false,
		Metadata:  map[string]interface{}{"candidates": candidates},
		Timestamp: time.Now().UTC(),
	}
}

// NewCRMUnavailableError is retry-eligible; the conversation stays in
// LEAD_PENDING until a later turn retries.
func NewCRMUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCRMUnavailable,
		Message:   "CRM lead creation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidCatalogDataError reports items skipped during indexing.
func NewInvalidCatalogDataError(skipped int, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidCatalogData,
		Message:   "Catalog items failed validation and were skipped",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"skippedItems": skipped},
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewConversationLoadFailedError(conversationID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConversationLoadFailed,
		Message:   "Failed to load conversation state",
		Details:   fmt.Sprintf("conversationId: %s, error: %s", conversationID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewConversationSaveFailedError(conversationID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConversationSaveFailed,
		Message:   "Failed to save conversation state",
		Details:   fmt.Sprintf("conversationId: %s, error: %s", conversationID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewLeadStoreFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLeadStoreFailed,
		Message:   "Failed to persist lead record",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewFAQLookupFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFAQLookupFailed,
		Message:   "FAQ lookup failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the error code from err, or "UNKNOWN_ERROR".
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return "UNKNOWN_ERROR"
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether err is marked retryable.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}
