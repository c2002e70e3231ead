package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/obsidianstack/promcheck/pkg/types"
)

// Kind classifies why a request failed.
type Kind int

const (
	KindOther Kind = iota
	KindTimeout
	KindConnection
	KindStatus
	KindBodyTooLarge
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindStatus:
		return "status"
	case KindBodyTooLarge:
		return "body_too_large"
	case KindCanceled:
		return "canceled"
	default:
		return "other"
	}
}

// Error is returned by Client.Get when no usable response was obtained.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Attempts   int
	Timeout    time.Duration
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("fetch %s: HTTP %d: %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	case KindTimeout:
		return fmt.Sprintf("fetch %s: timeout after %v", e.URL, e.Timeout)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

var errBodyTooLarge = errors.New("response body exceeds size limit")

// classify maps a transport error to a Kind.
func classify(err error) Kind {
	var netErr net.Error
	switch {
	case errors.Is(err, errBodyTooLarge):
		return KindBodyTooLarge
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	case isConnError(err):
		return KindConnection
	default:
		return KindOther
	}
}

func isConnError(err error) bool {
	var dnsErr *net.DNSError
	var opErr *net.OpError
	return errors.As(err, &dnsErr) ||
		errors.As(err, &opErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// isTransient reports whether err may clear up on a retry. Unknown hosts do
// not resolve on retry; refused, reset and timed-out connections may.
func isTransient(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return false
	}
	switch classify(err) {
	case KindTimeout, KindConnection:
		return true
	default:
		return false
	}
}

// IssueFor converts a fetch failure into a critical validation issue.
func IssueFor(err error) types.Issue {
	var fe *Error
	if !errors.As(err, &fe) {
		return types.Critical(types.CategoryError, fmt.Sprintf("Unexpected error: %v", err)).
			With("error", err.Error())
	}

	switch fe.Kind {
	case KindTimeout:
		secs := fe.Timeout.Seconds()
		return types.Critical(types.CategoryConnectivity,
			fmt.Sprintf("Request timeout after %gs", secs)).
			With("timeout", secs).
			With("attempts", fe.Attempts)
	case KindConnection:
		return types.Critical(types.CategoryConnectivity,
			fmt.Sprintf("Connection failed: %v", fe.Err)).
			With("error", fe.Err.Error()).
			With("attempts", fe.Attempts)
	case KindStatus:
		return types.Critical(types.CategoryHTTP,
			fmt.Sprintf("HTTP %d: %s", fe.StatusCode, http.StatusText(fe.StatusCode))).
			With("status_code", fe.StatusCode).
			With("attempts", fe.Attempts)
	case KindBodyTooLarge:
		return types.Critical(types.CategoryHTTP, fe.Err.Error()).
			With("status_code", fe.StatusCode)
	default:
		return types.Critical(types.CategoryError, fmt.Sprintf("Unexpected error: %v", fe.Err)).
			With("error", fe.Err.Error())
	}
}
