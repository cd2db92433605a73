package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ProviderKind classifies a failed call to an AI provider.
type ProviderKind string

const (
	RateLimited  ProviderKind = "rate_limited"
	Unauthorized ProviderKind = "unauthorized"
	Forbidden    ProviderKind = "forbidden"
	Unknown      ProviderKind = "unknown"
)

// ConfigurationError means the request cannot run with the current setup,
// for example no API key for the chosen provider.
type ConfigurationError struct {
	Reason      string
	Remediation string
}

func (e *ConfigurationError) Error() string {
	if e.Remediation == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s (%s)", e.Reason, e.Remediation)
}

// ProviderError is a classified failure returned by an embedding or chat endpoint.
type ProviderError struct {
	Kind     ProviderKind
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ExtractionFailure means no usable text could be read from an uploaded file.
type ExtractionFailure struct {
	FileType string
	Err      error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extract text from %s: %v", e.FileType, e.Err)
}

func (e *ExtractionFailure) Unwrap() error { return e.Err }

// ParseFailure means a structured task's model output matched no known shape.
type ParseFailure struct {
	Task string
	Raw  string
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("could not parse %s output", e.Task)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func Configuration(reason, remediation string) error {
	return &ConfigurationError{Reason: reason, Remediation: remediation}
}

func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsProviderKind reports whether err wraps a ProviderError of the given kind.
func IsProviderKind(err error, kind ProviderKind) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == kind
}

// HTTPStatus maps an error from any layer to the response status.
func HTTPStatus(err error) int {
	var (
		cfgErr   *ConfigurationError
		provErr  *ProviderError
		extErr   *ExtractionFailure
		parseErr *ParseFailure
		valErr   *ValidationError
		nfErr    *NotFoundError
	)
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &nfErr):
		return http.StatusNotFound
	case errors.As(err, &cfgErr):
		return http.StatusPreconditionFailed
	case errors.As(err, &extErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &parseErr):
		return http.StatusBadGateway
	case errors.As(err, &provErr):
		switch provErr.Kind {
		case RateLimited:
			return http.StatusTooManyRequests
		case Unauthorized, Forbidden:
			return http.StatusFailedDependency
		default:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// UserMessage returns a message safe to show the user, with a remediation
// hint where one exists.
func UserMessage(err error) string {
	var (
		cfgErr   *ConfigurationError
		provErr  *ProviderError
		extErr   *ExtractionFailure
		parseErr *ParseFailure
		valErr   *ValidationError
		nfErr    *NotFoundError
	)
	switch {
	case errors.As(err, &valErr):
		return valErr.Error()
	case errors.As(err, &nfErr):
		return nfErr.Error()
	case errors.As(err, &cfgErr):
		if cfgErr.Remediation != "" {
			return cfgErr.Reason + ". " + cfgErr.Remediation
		}
		return cfgErr.Reason
	case errors.As(err, &extErr):
		return "We couldn't read any text from this file. Try a text-based PDF or a plain text file."
	case errors.As(err, &parseErr):
		return "The AI response could not be understood. Please try generating again."
	case errors.As(err, &provErr):
		switch provErr.Kind {
		case RateLimited:
			return "The AI provider is rate limiting requests. Wait a moment and try again."
		case Unauthorized:
			return "The API key for " + provErr.Provider + " was rejected. Check the key in your settings."
		case Forbidden:
			return "The API key for " + provErr.Provider + " is not allowed to use this model. Check your plan or choose another model."
		default:
			return "The AI provider returned an error. Please try again later."
		}
	}
	return "internal error"
}
