package errors

import "net/http"

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

// Sentinels shared by services and handlers. Wrap them with fmt.Errorf("...: %w")
// to add context; handlers recover the status code with errors.As.
var (
	NotFound            = &ErrorWithStatusCode{Message: "File not found", StatusCode: http.StatusNotFound}
	UpstreamUnavailable = &ErrorWithStatusCode{Message: "File host unavailable", StatusCode: http.StatusBadGateway}
	FileTooLarge        = &ErrorWithStatusCode{Message: "File too large", StatusCode: http.StatusRequestEntityTooLarge}
)

// Malformed reports rejected client input.
func Malformed(message string) error {
	return &ErrorWithStatusCode{Message: message, StatusCode: http.StatusBadRequest}
}
