package api

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
)

// Problem is an RFC 9457 problem details document.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Extensions are serialized as top-level members.
	Extensions map[string]any `json:"-"`

	// Log is the internal cause. It is logged, never sent.
	Log error `json:"-"`
}

func (p *Problem) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

func (p *Problem) Unwrap() error {
	return p.Log
}

func (p *Problem) MarshalJSON() ([]byte, error) {
	data := make(map[string]any, len(p.Extensions)+5)
	maps.Copy(data, p.Extensions)

	data["type"] = p.Type
	data["title"] = p.Title
	data["status"] = p.Status
	if p.Detail != "" {
		data["detail"] = p.Detail
	}
	if p.Instance != "" {
		data["instance"] = p.Instance
	}
	return json.Marshal(data)
}

type ProblemOption func(*Problem)

// NewError builds a Problem with the RFC default type.
func NewError(status int, title, detail string, opts ...ProblemOption) *Problem {
	p := &Problem{
		Type:       "about:blank",
		Title:      title,
		Status:     status,
		Detail:     detail,
		Extensions: make(map[string]any),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func WithExtension(key string, value any) ProblemOption {
	return func(p *Problem) { p.Extensions[key] = value }
}

func WithLog(err error) ProblemOption {
	return func(p *Problem) { p.Log = err }
}

func WithType(uri string) ProblemOption {
	return func(p *Problem) { p.Type = uri }
}

func WithInstance(uri string) ProblemOption {
	return func(p *Problem) { p.Instance = uri }
}

// ValidationError reports field-level failures under the "errors" member.
func ValidationError(fields map[string]string) *Problem {
	return NewError(http.StatusBadRequest, "Validation Error", "One or more fields failed validation",
		WithType("/problems/validation"),
		WithExtension("errors", fields),
	)
}

func BadRequestError(detail string, opts ...ProblemOption) *Problem {
	return NewError(http.StatusBadRequest, "Bad Request", detail, opts...)
}

func UnauthorizedError(detail string) *Problem {
	return NewError(http.StatusUnauthorized, "Unauthorized", detail)
}

func NotFoundError(detail string, opts ...ProblemOption) *Problem {
	return NewError(http.StatusNotFound, "Not Found", detail, opts...)
}

func RateLimitError(detail string) *Problem {
	return NewError(http.StatusTooManyRequests, "Too Many Requests", detail)
}

func InternalError(detail string, err error) *Problem {
	return NewError(http.StatusInternalServerError, "Internal Server Error", detail, WithLog(err))
}

// UpstreamError is a 502 for failures reported by a generation backend.
func UpstreamError(detail string, err error, opts ...ProblemOption) *Problem {
	return NewError(http.StatusBadGateway, "Bad Gateway", detail, append([]ProblemOption{WithLog(err)}, opts...)...)
}

// UnavailableError is a 503 for when nothing could serve the request.
func UnavailableError(detail string, err error) *Problem {
	return NewError(http.StatusServiceUnavailable, "Service Unavailable", detail, WithLog(err))
}

func TimeoutError(detail string, err error) *Problem {
	return NewError(http.StatusGatewayTimeout, "Gateway Timeout", detail, WithLog(err))
}
