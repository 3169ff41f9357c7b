package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
)

// ErrClientClosed is returned by calls made after Close
var ErrClientClosed = errors.New("ledger client closed")

// RemoteError is a non-200 response from the ledger API
type RemoteError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: ledger API returned status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Unwrap marks client errors as rejected requests
func (e *RemoteError) Unwrap() error {
	if e.clientError() {
		return entities.ErrRemoteRejected
	}
	return nil
}

func (e *RemoteError) clientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 from the ledger API
func IsNotFound(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusNotFound
}

var transientMessageTokens = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"broken pipe",
	"unexpected eof",
	"temporarily unavailable",
}

// isRetryable reports whether a failed attempt may succeed when repeated
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.StatusCode >= 500 || remoteErr.StatusCode == http.StatusTooManyRequests
	}

	if errors.Is(err, entities.ErrInvalidAddress) || errors.Is(err, ErrClientClosed) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	lower := strings.ToLower(err.Error())
	for _, token := range transientMessageTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
