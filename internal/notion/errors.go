package notion

import (
	"errors"
	"fmt"
)

// Errors returned by the client and the property extractor.
//
// Extraction errors let a caller tell "property absent, use the default"
// apart from "request failed":
//
//	if errors.Is(err, notion.ErrTransport) {
//	    // the API could not be reached
//	}
var (
	// ErrTransport wraps network and protocol failures talking to the API.
	ErrTransport = errors.New("notion transport error")

	// ErrMalformedResponse is returned when a response body is not the
	// expected JSON shape.
	ErrMalformedResponse = errors.New("malformed notion response")

	// ErrNoProperties is returned when a record has no properties object.
	ErrNoProperties = errors.New("record has no properties")

	// ErrPropertyMissing is returned when none of the candidate names exist.
	ErrPropertyMissing = errors.New("property not found")

	// ErrEmpty is returned when a property exists but holds no value
	// (null select, null date, empty relation).
	ErrEmpty = errors.New("property is empty")

	// ErrKindMismatch is returned when a property's kind cannot be decoded
	// into the requested shape.
	ErrKindMismatch = errors.New("property kind mismatch")

	// ErrMalformed is returned when a property's value does not match its
	// declared kind.
	ErrMalformed = errors.New("malformed property value")

	// ErrUnsupportedKind is returned for property kinds with no decode rule.
	ErrUnsupportedKind = errors.New("unsupported property kind")
)

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion api: HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("notion api: HTTP %d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is an APIError for a missing object.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 404 || apiErr.Code == "object_not_found"
	}
	return false
}
