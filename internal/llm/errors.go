package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/nulzo/generation-router/internal/httpclient"
)

// ErrEmptyContent is returned when a backend answers successfully but with nothing in it.
var ErrEmptyContent = errors.New("backend returned empty content")

// ErrorKind is a coarse classification used for metrics and logs.
type ErrorKind string

const (
	KindRateLimit ErrorKind = "rate_limit"
	KindAuth      ErrorKind = "auth"
	KindTimeout   ErrorKind = "timeout"
	KindServer    ErrorKind = "server"
	KindClient    ErrorKind = "client"
	KindNetwork   ErrorKind = "network"
	KindEmpty     ErrorKind = "empty"
	KindUnknown   ErrorKind = "unknown"
)

// BackendError describes a failed call to a remote backend.
type BackendError struct {
	Backend    BackendID
	StatusCode int
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	return e.Message
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// WrapUpstream converts transport and upstream failures into a BackendError.
// detail, when non-empty, replaces the raw upstream body as the message.
func WrapUpstream(id BackendID, err error, detail func(body []byte) string) error {
	if err == nil {
		return nil
	}

	var upstream *httpclient.UpstreamError
	if errors.As(err, &upstream) {
		msg := http.StatusText(upstream.StatusCode)
		if detail != nil {
			if d := detail(upstream.Body); d != "" {
				msg = d
			}
		}
		return &BackendError{Backend: id, StatusCode: upstream.StatusCode, Message: msg, Err: err}
	}

	return &BackendError{Backend: id, Message: err.Error(), Err: err}
}

// Empty builds the error for an empty-content response.
func Empty(id BackendID) error {
	return &BackendError{Backend: id, Message: ErrEmptyContent.Error(), Err: ErrEmptyContent}
}

// Classify maps an error to its ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrEmptyContent) {
		return KindEmpty
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var be *BackendError
	if errors.As(err, &be) && be.StatusCode > 0 {
		switch {
		case be.StatusCode == http.StatusTooManyRequests:
			return KindRateLimit
		case be.StatusCode == http.StatusUnauthorized || be.StatusCode == http.StatusForbidden:
			return KindAuth
		case be.StatusCode == http.StatusRequestTimeout || be.StatusCode == http.StatusGatewayTimeout:
			return KindTimeout
		case be.StatusCode >= 500:
			return KindServer
		case be.StatusCode >= 400:
			return KindClient
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}
