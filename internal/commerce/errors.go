package commerce

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

const maxErrorBody = 4 << 10

var (
	// ErrOrderNotFound is returned when the upstream API reports an unknown order id.
	ErrOrderNotFound = errors.New("commerce: order not found")
	// ErrInvalidOrderID is returned for blank order identifiers before any upstream call.
	ErrInvalidOrderID = errors.New("commerce: order id is required")
	// ErrUpstream is matched by UpstreamError and FetchError.
	ErrUpstream = errors.New("commerce: upstream request failed")
)

// UpstreamError describes a transport failure or a non-2xx response from the commerce API.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString("commerce: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.StatusCode > 0:
		fmt.Fprintf(&b, "status %d", e.StatusCode)
		if e.Body != "" {
			b.WriteString(": ")
			b.WriteString(e.Body)
		} else if e.Err != nil {
			b.WriteString(": ")
			b.WriteString(e.Err.Error())
		}
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString("request failed")
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Detail returns the most useful diagnostic text: the upstream body when present, otherwise the cause.
func (e *UpstreamError) Detail() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return ""
}

// FetchError aborts a paginated fetch. Page is the 1-based page that failed.
type FetchError struct {
	Page       int
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 && e.Body != "" {
		return fmt.Sprintf("commerce: fetch page %d: status %d: %s", e.Page, e.StatusCode, e.Body)
	}
	if e.StatusCode > 0 && e.Err != nil {
		return fmt.Sprintf("commerce: fetch page %d: status %d: %v", e.Page, e.StatusCode, e.Err)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("commerce: fetch page %d: status %d", e.Page, e.StatusCode)
	}
	return fmt.Sprintf("commerce: fetch page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrUpstream }

// Detail mirrors UpstreamError.Detail for the failing page.
func (e *FetchError) Detail() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func newFetchError(page int, err error) *FetchError {
	fe := &FetchError{Page: page, Err: err}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		fe.StatusCode = upstream.StatusCode
		fe.Body = upstream.Body
	}
	return fe
}

func drainBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
