package client

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/serverpulse/agent/internal/tasks"
	"github.com/serverpulse/agent/internal/webserver"
)

func TestClientError_WrappingMessages(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  *ClientError
		want string
	}{
		{"configuration", NewConfigurationError(cause), "unable to load configuration boom"},
		{"io", NewIOError(cause), "general IO error: boom"},
		{"yaml", NewYamlError(cause), "yaml parse error: boom"},
		{"webserver", NewWebserverError(cause), "webserver error: boom"},
		{"task", NewTaskError(cause), "tokio thread error: boom"},
		{"websocket", NewWebsocketError(cause), "websocket error boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestClientError_FixedMessages(t *testing.T) {
	assert.Equal(t, "unknown client error", NewUnknownError().Error())
	assert.Equal(t, "unknown client error", ErrUnknown.Error())
	assert.Equal(t, "auth token not present", NewTokenError().Error())
	assert.Equal(t, "auth token not present", ErrTokenMissing.Error())
}

func TestClientError_UnwrapRoundTrip(t *testing.T) {
	constructors := []func(error) *ClientError{
		NewConfigurationError,
		NewIOError,
		NewYamlError,
		NewWebserverError,
		NewTaskError,
		NewWebsocketError,
	}

	for _, construct := range constructors {
		cause := errors.New("underlying failure")
		cerr := construct(cause)

		require.NotNil(t, cerr.Unwrap())
		assert.Equal(t, cause.Error(), cerr.Unwrap().Error())
		assert.True(t, errors.Is(cerr, cause))
	}

	assert.Nil(t, NewUnknownError().Unwrap())
	assert.Nil(t, NewTokenError().Unwrap())
}

// The fixed leading phrases must stay pairwise distinct so no two kinds
// can ever format to colliding messages.
func TestClientError_MessagesNeverCollide(t *testing.T) {
	cause := errors.New("same cause everywhere")
	all := []*ClientError{
		NewConfigurationError(cause),
		NewIOError(cause),
		NewYamlError(cause),
		NewWebserverError(cause),
		NewTaskError(cause),
		NewWebsocketError(cause),
		NewUnknownError(),
		NewTokenError(),
	}

	seen := make(map[string]Kind, len(all))
	for _, cerr := range all {
		msg := cerr.Error()
		if prev, ok := seen[msg]; ok {
			t.Fatalf("kinds %v and %v collide on %q", prev, cerr.Kind(), msg)
		}
		seen[msg] = cerr.Kind()
	}

	for _, a := range all {
		for _, b := range all {
			if a.Kind() == b.Kind() {
				continue
			}
			assert.False(t, strings.HasPrefix(a.Error(), b.Error()),
				"message for %v is a prefix of %v", b.Kind(), a.Kind())
		}
	}
}

func TestClientError_MissingConfigFileExample(t *testing.T) {
	_, err := os.ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	cerr := NewConfigurationError(err)
	assert.Equal(t, "unable to load configuration "+err.Error(), cerr.Error())
	assert.Equal(t, KindConfiguration, cerr.Kind())
}

func TestClientError_Is(t *testing.T) {
	assert.True(t, errors.Is(NewTokenError(), ErrTokenMissing))
	assert.True(t, errors.Is(NewUnknownError(), ErrUnknown))
	assert.False(t, errors.Is(NewTokenError(), ErrUnknown))

	wrapped := fmt.Errorf("outer: %w", NewTokenError())
	assert.True(t, errors.Is(wrapped, ErrTokenMissing))
}

// timeoutError satisfies net.Error with Timeout() true, like the error
// a deadline-bound dial or read produces.
type timeoutError struct{}

func (timeoutError) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClientError_Retryable(t *testing.T) {
	assert.True(t, NewWebsocketError(errors.New("gone")).Retryable())
	assert.True(t, NewWebserverError(&webserver.StatusError{Status: 503}).Retryable())
	assert.False(t, NewWebserverError(&webserver.StatusError{Status: 404}).Retryable())
	assert.False(t, NewTokenError().Retryable())
	assert.False(t, NewConfigurationError(errors.New("bad")).Retryable())

	// IO is retryable only when the cause is a net timeout.
	assert.True(t, NewIOError(timeoutError{}).Retryable())
	assert.True(t, NewIOError(fmt.Errorf("read spool: %w", timeoutError{})).Retryable())
	assert.False(t, NewIOError(errors.New("disk full")).Retryable())
}

func TestWrap_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"join error", &tasks.JoinError{Task: "report", Panic: "boom"}, KindTask},
		{"yaml type error", &yaml.TypeError{Errors: []string{"line 1: cannot unmarshal"}}, KindYaml},
		{"websocket close", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, KindWebsocket},
		{"bad handshake", websocket.ErrBadHandshake, KindWebsocket},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("refused")}, KindWebserver},
		{"status error", &webserver.StatusError{Status: 500}, KindWebserver},
		{"path error", &fs.PathError{Op: "open", Path: "/nope", Err: errors.New("no such file")}, KindIO},
		{"eof", io.ErrUnexpectedEOF, KindIO},
		{"unclassified", errors.New("something odd"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cerr := Wrap(tt.err)
			require.NotNil(t, cerr)
			assert.Equal(t, tt.want, cerr.Kind())
		})
	}
}

func TestWrap_PassesThroughClientErrors(t *testing.T) {
	orig := NewYamlError(errors.New("bad indent"))

	assert.Same(t, orig, Wrap(orig))
	assert.Same(t, orig, Wrap(fmt.Errorf("outer: %w", orig)))
	assert.Nil(t, Wrap(nil))
}

func TestWrap_TaskJoinMessage(t *testing.T) {
	join := &tasks.JoinError{Task: "report", Panic: "index out of range"}
	cerr := Wrap(error(join))

	assert.Equal(t, KindTask, cerr.Kind())
	assert.Equal(t, "tokio thread error: task report panicked: index out of range", cerr.Error())
}

func TestKind_String(t *testing.T) {
	kinds := map[Kind]string{
		KindConfiguration: "configuration",
		KindIO:            "io",
		KindYaml:          "yaml",
		KindWebserver:     "webserver",
		KindTask:          "task",
		KindToken:         "token",
		KindWebsocket:     "websocket",
		KindUnknown:       "unknown",
	}
	for k, want := range kinds {
		assert.Equal(t, want, k.String())
	}
}
