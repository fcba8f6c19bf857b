package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorKind classifies a failed request for the retry policy
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindClient covers 4xx responses; never retried
	ErrorKindClient
	// ErrorKindServer covers 5xx responses; retried
	ErrorKindServer
	// ErrorKindNetwork covers connection failures and timeouts; retried
	ErrorKindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindClient:
		return "client"
	case ErrorKindServer:
		return "server"
	case ErrorKindNetwork:
		return "network"
	}
	return "unknown"
}

// Retryable returns true for kinds the retry policy retries
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindServer || k == ErrorKindNetwork
}

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d: %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Kind classifies the error by status code
func (e *APIError) Kind() ErrorKind {
	switch {
	case e.StatusCode >= 500:
		return ErrorKindServer
	case e.StatusCode >= 400:
		return ErrorKindClient
	}
	return ErrorKindUnknown
}

// IsNotFound reports whether err is a 404 API error
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// Classify maps an error returned by the client to its kind.
// Cancellation by the caller is never retryable.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}

	if errors.Is(err, context.Canceled) {
		return ErrorKindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorKindNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrorKindNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorKindNetwork
	}

	return ErrorKindUnknown
}
