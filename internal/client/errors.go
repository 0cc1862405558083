package client

import (
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"github.com/serverpulse/agent/internal/tasks"
	"github.com/serverpulse/agent/internal/webserver"
)

// Kind discriminates the closed set of failure categories a client
// operation can produce. Exactly one kind is active per error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindIO
	KindYaml
	KindWebserver
	KindTask
	KindToken
	KindWebsocket
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindIO:
		return "io"
	case KindYaml:
		return "yaml"
	case KindWebserver:
		return "webserver"
	case KindTask:
		return "task"
	case KindToken:
		return "token"
	case KindWebsocket:
		return "websocket"
	default:
		return "unknown"
	}
}

// ClientError is the single error type every fallible client operation
// returns. It carries the category of the failure and, for the wrapping
// kinds, the underlying cause. It is immutable after construction and
// performs no I/O or logging of its own; handling policy belongs to the
// caller that consumes it.
type ClientError struct {
	kind  Kind
	cause error
}

// Message templates are load-bearing: the CLI and log layers consume
// them verbatim, so the exact wording (including the absent colon on
// the configuration and websocket forms) must not change.
func (e *ClientError) Error() string {
	switch e.kind {
	case KindConfiguration:
		return "unable to load configuration " + causeText(e.cause)
	case KindIO:
		return "general IO error: " + causeText(e.cause)
	case KindYaml:
		return "yaml parse error: " + causeText(e.cause)
	case KindWebserver:
		return "webserver error: " + causeText(e.cause)
	case KindTask:
		return "tokio thread error: " + causeText(e.cause)
	case KindToken:
		return "auth token not present"
	case KindWebsocket:
		return "websocket error " + causeText(e.cause)
	default:
		return "unknown client error"
	}
}

func causeText(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
// Unknown and Token carry none.
func (e *ClientError) Unwrap() error {
	return e.cause
}

// Kind reports which failure category this error belongs to.
func (e *ClientError) Kind() Kind {
	return e.kind
}

// Is matches two client errors of the same kind regardless of cause, so
// callers can write errors.Is(err, client.ErrTokenMissing).
func (e *ClientError) Is(target error) bool {
	var ce *ClientError
	if errors.As(target, &ce) {
		return ce.kind == e.kind
	}
	return false
}

// Retryable reports whether re-attempting the failed operation is
// worthwhile. Transport failures generally are; a timeout on the
// underlying net error is the strongest signal.
func (e *ClientError) Retryable() bool {
	switch e.kind {
	case KindWebserver:
		var statusErr *webserver.StatusError
		if errors.As(e.cause, &statusErr) {
			return statusErr.Status >= 500 || statusErr.Status == http.StatusTooManyRequests
		}
		return true
	case KindWebsocket:
		return true
	case KindIO:
		var netErr net.Error
		return errors.As(e.cause, &netErr) && netErr.Timeout()
	default:
		return false
	}
}

// NewConfigurationError wraps a configuration-load failure.
func NewConfigurationError(cause error) *ClientError {
	return &ClientError{kind: KindConfiguration, cause: cause}
}

// NewIOError wraps a filesystem or stream read/write failure.
func NewIOError(cause error) *ClientError {
	return &ClientError{kind: KindIO, cause: cause}
}

// NewYamlError wraps a failure to decode a YAML document.
func NewYamlError(cause error) *ClientError {
	return &ClientError{kind: KindYaml, cause: cause}
}

// NewWebserverError wraps an HTTP request, connection, or protocol
// failure against the control server.
func NewWebserverError(cause error) *ClientError {
	return &ClientError{kind: KindWebserver, cause: cause}
}

// NewTaskError wraps the abnormal termination of a spawned task.
func NewTaskError(cause error) *ClientError {
	return &ClientError{kind: KindTask, cause: cause}
}

// NewWebsocketError wraps a WebSocket handshake, frame, or connection
// failure.
func NewWebsocketError(cause error) *ClientError {
	return &ClientError{kind: KindWebsocket, cause: cause}
}

// NewUnknownError reports an unclassified failure. It carries no cause.
func NewUnknownError() *ClientError {
	return &ClientError{kind: KindUnknown}
}

// NewTokenError reports that the expected auth token is absent. It
// carries no cause.
func NewTokenError() *ClientError {
	return &ClientError{kind: KindToken}
}

// Sentinels for the causeless kinds, usable as errors.Is targets.
var (
	ErrUnknown      = NewUnknownError()
	ErrTokenMissing = NewTokenError()
)

// Wrap classifies an arbitrary collaborator error into the matching
// kind. Errors that are already client errors pass through unchanged;
// anything unrecognized falls back to Unknown.
func Wrap(err error) *ClientError {
	if err == nil {
		return nil
	}

	var ce *ClientError
	if errors.As(err, &ce) {
		return ce
	}

	var joinErr *tasks.JoinError
	if errors.As(err, &joinErr) {
		return NewTaskError(err)
	}

	var yamlErr *yaml.TypeError
	if errors.As(err, &yamlErr) {
		return NewYamlError(err)
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) || errors.Is(err, websocket.ErrBadHandshake) {
		return NewWebsocketError(err)
	}

	var urlErr *url.Error
	var statusErr *webserver.StatusError
	if errors.As(err, &urlErr) || errors.As(err, &statusErr) {
		return NewWebserverError(err)
	}

	var pathErr *fs.PathError
	var opErr *net.OpError
	switch {
	case errors.As(err, &pathErr),
		errors.As(err, &opErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return NewIOError(err)
	}

	return NewUnknownError()
}
