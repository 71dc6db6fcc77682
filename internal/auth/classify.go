package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// ClassifiedError is a remote failure mapped to a user-facing category.
type ClassifiedError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
}

// ErrorType categorizes remote failures.
type ErrorType int

const (
	// ErrTypeNoKey indicates no API key was configured.
	ErrTypeNoKey ErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a connectivity problem or timeout.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates rate limiting or exhausted quota.
	ErrTypeQuotaExceeded
	// ErrTypeServerError indicates a 5xx from the remote service.
	ErrTypeServerError
	// ErrTypeBadRequest indicates the remote rejected the request content.
	ErrTypeBadRequest
	// ErrTypeUnknown indicates an unclassified failure.
	ErrTypeUnknown
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeNoKey:
		return "no_key"
	case ErrTypeInvalidKey:
		return "invalid_key"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	case ErrTypeServerError:
		return "server_error"
	case ErrTypeBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

func (e *ClassifiedError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Classify maps an error from either remote client into a ClassifiedError.
// It returns nil for a nil error.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		return fromStatus(oaiErr.HTTPStatusCode, oaiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fromStatus(reqErr.HTTPStatusCode, "", err)
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return fromStatus(gErr.Code, gErr.Message, err)
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) {
		return fromStatus(gErrPtr.Code, gErrPtr.Message, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{Type: ErrTypeNetworkError, Message: "Remote service timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &ClassifiedError{Type: ErrTypeNetworkError, Message: "Request was cancelled", Err: err}
	}

	return fromMessage(err)
}

// fromStatus categorizes an HTTP status returned by the remote service.
func fromStatus(code int, remoteMsg string, err error) *ClassifiedError {
	ce := &ClassifiedError{StatusCode: code, Err: err}
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		ce.Type = ErrTypeInvalidKey
		ce.Message = "API key is invalid, expired, or lacks permissions"
	case code == http.StatusTooManyRequests || code == http.StatusPaymentRequired:
		ce.Type = ErrTypeQuotaExceeded
		ce.Message = "API rate limit or quota exceeded - try again later"
	case code >= 500:
		ce.Type = ErrTypeServerError
		ce.Message = "Remote service error - try again later"
	case code >= 400:
		ce.Type = ErrTypeBadRequest
		ce.Message = "Remote service rejected the request"
	default:
		return fromMessage(err)
	}
	if remoteMsg != "" && ce.Type == ErrTypeBadRequest {
		ce.Message += ": " + remoteMsg
	}
	return ce
}

// fromMessage falls back to matching common error text.
func fromMessage(err error) *ClassifiedError {
	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied"):
		return &ClassifiedError{Type: ErrTypeInvalidKey, Message: "API key is invalid or has been revoked", Err: err}

	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "rate limit"):
		return &ClassifiedError{Type: ErrTypeQuotaExceeded, Message: "API quota exceeded or rate limited", Err: err}

	case strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		return &ClassifiedError{Type: ErrTypeNetworkError, Message: "Network error - check your internet connection", Err: err}

	default:
		return &ClassifiedError{Type: ErrTypeUnknown, Message: "Image processing failed", Err: err}
	}
}
