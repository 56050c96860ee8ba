package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorTransport
	ErrorProtocol
	ErrorInvalidArgument
	ErrorConnection
)

func (t ErrorType) String() string {
	switch t {
	case ErrorNone:
		return "none"
	case ErrorTransport:
		return "transport"
	case ErrorProtocol:
		return "protocol"
	case ErrorInvalidArgument:
		return "invalid argument"
	case ErrorConnection:
		return "connection"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// TransportError represents transport-layer specific errors
type TransportError int

const (
	TransportErrorNone TransportError = iota
	TransportErrorSocketCreateFailure
	TransportErrorSocketConnectFailure
	TransportErrorSocketReadFailure
	TransportErrorSocketWriteFailure
	TransportErrorConnectionClosed
	TransportErrorConnectionRefused
	TransportErrorDnsFailure
	TransportErrorTimeout
	TransportErrorIoUringInit
	TransportErrorIoUringSubmit
)

func (e TransportError) String() string {
	switch e {
	case TransportErrorNone:
		return "no transport error"
	case TransportErrorSocketCreateFailure:
		return "socket creation failed"
	case TransportErrorSocketConnectFailure:
		return "socket connection failed"
	case TransportErrorSocketReadFailure:
		return "socket read failed"
	case TransportErrorSocketWriteFailure:
		return "socket write failed"
	case TransportErrorConnectionClosed:
		return "connection closed"
	case TransportErrorConnectionRefused:
		return "connection refused"
	case TransportErrorDnsFailure:
		return "DNS lookup failed"
	case TransportErrorTimeout:
		return "timeout"
	case TransportErrorIoUringInit:
		return "io_uring initialization failed"
	case TransportErrorIoUringSubmit:
		return "io_uring submission failed"
	default:
		return fmt.Sprintf("unknown transport error: %d", int(e))
	}
}

// ProtocolError represents protocol-layer specific errors
type ProtocolError int

const (
	ProtocolErrorNone ProtocolError = iota
	ProtocolErrorInvalidStatusLine
	ProtocolErrorInvalidRequestLine
	ProtocolErrorInvalidHeader
	ProtocolErrorInvalidChunkedEncoding
	ProtocolErrorLineTooLong
	ProtocolErrorIncompleteResponse
	ProtocolErrorTooManyRedirects
	ProtocolErrorInvalidLocation
)

func (e ProtocolError) String() string {
	switch e {
	case ProtocolErrorNone:
		return "no protocol error"
	case ProtocolErrorInvalidStatusLine:
		return "invalid status line"
	case ProtocolErrorInvalidRequestLine:
		return "invalid request line"
	case ProtocolErrorInvalidHeader:
		return "invalid header"
	case ProtocolErrorInvalidChunkedEncoding:
		return "invalid chunked encoding"
	case ProtocolErrorLineTooLong:
		return "line too long"
	case ProtocolErrorIncompleteResponse:
		return "incomplete message"
	case ProtocolErrorTooManyRedirects:
		return "too many redirects"
	case ProtocolErrorInvalidLocation:
		return "invalid redirect location"
	default:
		return fmt.Sprintf("unknown protocol error: %d", int(e))
	}
}

// HttpError is the main error type for the HTTP engine
type HttpError struct {
	Type          ErrorType
	TransportErr  TransportError
	ProtocolErr   ProtocolError
	Message       string
	UnderlyingErr error
}

// Error implements the error interface
func (e *HttpError) Error() string {
	if e == nil {
		return "no error"
	}

	var typeStr string
	switch e.Type {
	case ErrorTransport:
		typeStr = fmt.Sprintf("Transport error (%s)", e.TransportErr)
	case ErrorConnection:
		typeStr = fmt.Sprintf("Connection error (%s)", e.TransportErr)
	case ErrorProtocol:
		typeStr = fmt.Sprintf("Protocol error (%s)", e.ProtocolErr)
	case ErrorInvalidArgument:
		typeStr = "Invalid argument"
	default:
		typeStr = "Unknown error"
	}

	if e.Message != "" {
		typeStr = fmt.Sprintf("%s: %s", typeStr, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", typeStr, e.UnderlyingErr)
	}

	return typeStr
}

// Unwrap returns the underlying error for error chain support
func (e *HttpError) Unwrap() error {
	return e.UnderlyingErr
}

// WithCause attaches an underlying error and returns e.
func (e *HttpError) WithCause(err error) *HttpError {
	e.UnderlyingErr = err
	return e
}

// NewTransportError creates a new transport error
func NewTransportError(err TransportError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorTransport,
		TransportErr:  err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewProtocolError creates a new protocol error
func NewProtocolError(err ProtocolError, message string) *HttpError {
	return &HttpError{
		Type:        ErrorProtocol,
		ProtocolErr: err,
		Message:     message,
	}
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string) *HttpError {
	return &HttpError{
		Type:    ErrorInvalidArgument,
		Message: message,
	}
}

// NewConnectionError reports that no candidate address accepted a connection.
func NewConnectionError(message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorConnection,
		TransportErr:  TransportErrorConnectionRefused,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// IsTransportError reports whether err, or any HttpError it wraps, carries
// the given transport error kind.
func IsTransportError(err error, kind TransportError) bool {
	return matchChain(err, func(e *HttpError) bool {
		return e.Type == ErrorTransport && e.TransportErr == kind
	})
}

// IsProtocolError reports whether err carries the given protocol error kind.
func IsProtocolError(err error, kind ProtocolError) bool {
	return matchChain(err, func(e *HttpError) bool {
		return e.Type == ErrorProtocol && e.ProtocolErr == kind
	})
}

// IsConnectionError reports whether err is a connection-refused failure.
func IsConnectionError(err error) bool {
	return matchChain(err, func(e *HttpError) bool {
		return e.Type == ErrorConnection
	})
}

// IsConnectionClosed reports whether err means the peer closed the stream.
func IsConnectionClosed(err error) bool {
	return IsTransportError(err, TransportErrorConnectionClosed)
}

func matchChain(err error, match func(*HttpError) bool) bool {
	var httpErr *HttpError
	for stderrors.As(err, &httpErr) {
		if match(httpErr) {
			return true
		}
		err = httpErr.UnderlyingErr
	}
	return false
}
