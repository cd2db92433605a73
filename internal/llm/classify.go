package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
)

// classify turns a vendor SDK error into an *apperr.ProviderError. Context
// cancellation passes through untouched.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := statusOf(err)
	return &apperr.ProviderError{
		Kind:     kindFor(status),
		Provider: provider,
		Status:   status,
		Err:      err,
	}
}

func statusOf(err error) int {
	var (
		oaAPI *openai.APIError
		oaReq *openai.RequestError
		anErr *anthropic.Error
	)
	switch {
	case errors.As(err, &oaAPI):
		return oaAPI.HTTPStatusCode
	case errors.As(err, &oaReq):
		return oaReq.HTTPStatusCode
	case errors.As(err, &anErr):
		return anErr.StatusCode
	}
	return 0
}

func kindFor(status int) apperr.ProviderKind {
	switch status {
	case http.StatusTooManyRequests:
		return apperr.RateLimited
	case http.StatusUnauthorized:
		return apperr.Unauthorized
	case http.StatusForbidden:
		return apperr.Forbidden
	}
	return apperr.Unknown
}
