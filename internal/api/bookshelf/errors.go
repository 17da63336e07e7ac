package bookshelf

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork marks transport failures: the request never produced a response
	ErrNetwork = errors.New("network failure")
	// ErrMalformedResponse marks responses that could not be decoded or failed schema validation
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for any non-2xx response
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
	// Message is the backend's {"error": "..."} text, if it sent one
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: unexpected status code %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: unexpected status code %d", e.Method, e.Endpoint, e.StatusCode)
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsAuthFailure reports whether err is a 401 or 403 from the backend
func IsAuthFailure(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsNetwork reports whether err is a transport failure
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// BookError attaches the book a failed call was about.
// Callers read it back with GetBookID instead of parsing messages.
type BookError struct {
	Err    error
	BookID int
}

func (e *BookError) Error() string {
	return fmt.Sprintf("%s (book ID: %d)", e.Err.Error(), e.BookID)
}

// Unwrap returns the underlying error
func (e *BookError) Unwrap() error {
	return e.Err
}

// WithBookID wraps err with a book ID. A nil err stays nil and an err that
// already carries the same ID is returned as is.
func WithBookID(err error, bookID int) error {
	if err == nil {
		return nil
	}
	var existing *BookError
	if errors.As(err, &existing) && existing.BookID == bookID {
		return err
	}
	return &BookError{Err: err, BookID: bookID}
}

// GetBookID returns the book ID attached to err, if any
func GetBookID(err error) (int, bool) {
	var bookErr *BookError
	if errors.As(err, &bookErr) {
		return bookErr.BookID, true
	}
	return 0, false
}
