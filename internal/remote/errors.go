package remote

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the adapter-specific error taxonomy entry a failure
// belongs to (spec.md §4.4, §7 "Adapter-remote").
type Kind string

const (
	KindNotReady      Kind = "NotReady"
	KindProtocolError Kind = "ProtocolError"
	KindAuthError     Kind = "AuthError"
	KindNotFound      Kind = "NotFound"
	KindRateLimited   Kind = "RateLimited"
	KindTransport     Kind = "Transport"
	KindResponseShape Kind = "ResponseShape"
)

// Error is the typed error every Adapter method returns on failure. The
// original tool/transport text is preserved in Message so nothing is
// lost when the error is logged or shown to a user.
type Error struct {
	Kind    Kind
	Tool    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("remote adapter: %s (%s): %s", e.Tool, e.Kind, e.Message)
	}
	return fmt.Sprintf("remote adapter: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, tool, message string) *Error {
	return &Error{Kind: kind, Tool: tool, Message: message}
}

func wrapError(kind Kind, tool string, cause error) *Error {
	return &Error{Kind: kind, Tool: tool, Message: cause.Error(), Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, defaulting to KindTransport for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

// classifyToolBody inspects a tool response body that did not declare a
// structured error and decides whether the text itself signals a
// failure (spec.md §4.4: "string payloads that begin with Error: or
// match an HTTP error pattern are treated as tool errors").
func classifyToolBody(tool, body string) *Error {
	trimmed := strings.TrimSpace(body)

	if strings.HasPrefix(trimmed, "Error:") {
		return &Error{Kind: kindFromMessage(trimmed), Tool: tool, Message: trimmed}
	}

	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "error") && containsHTTPErrorStatus(lower) {
		return &Error{Kind: kindFromMessage(trimmed), Tool: tool, Message: trimmed}
	}

	return nil
}

var httpErrorStatuses = []string{
	"400", "401", "403", "404", "409", "422", "429",
	"500", "502", "503", "504",
}

func containsHTTPErrorStatus(lower string) bool {
	for _, code := range httpErrorStatuses {
		if strings.Contains(lower, code) {
			return true
		}
	}
	return false
}

// kindFromMessage infers the most specific Kind a free-text error
// message implies, falling back to ProtocolError.
func kindFromMessage(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "403") || strings.Contains(lower, "unauthoriz") || strings.Contains(lower, "forbidden"):
		return KindAuthError
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist"):
		return KindNotFound
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return KindRateLimited
	default:
		return KindProtocolError
	}
}
