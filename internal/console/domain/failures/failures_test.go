package failures_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminconsole/internal/console/domain/failures"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{&failures.AuthenticationError{Message: "Invalid credentials"}, failures.ErrAuthentication},
		{&failures.SessionExpiredError{Message: "expired"}, failures.ErrSessionExpired},
		{&failures.TransportError{Op: "login", Err: errors.New("dial")}, failures.ErrTransport},
		{&failures.ValidationFailure{Key: "admin_token", Err: errors.New("bad json")}, failures.ErrValidation},
		{&failures.RemoteError{Procedure: "products.list", Status: 500, Message: "boom"}, failures.ErrRemote},
	}

	for _, tc := range cases {
		wrapped := fmt.Errorf("outer: %w", tc.err)
		assert.ErrorIs(t, wrapped, tc.sentinel)
	}
}

func TestAuthenticationErrorMessage(t *testing.T) {
	err := &failures.AuthenticationError{Message: "Invalid credentials"}
	assert.Equal(t, "Invalid credentials", err.Error())
}

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, failures.IsUnauthorized(&failures.RemoteError{Status: http.StatusUnauthorized}))
	assert.True(t, failures.IsUnauthorized(fmt.Errorf("wrapped: %w", &failures.RemoteError{Code: failures.CodeUnauthorized})))
	assert.False(t, failures.IsUnauthorized(&failures.RemoteError{Status: http.StatusForbidden}))
	assert.False(t, failures.IsUnauthorized(errors.New("plain")))
}

func TestNormalize(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, failures.Normalize(nil))
	})

	t.Run("plain error is kept", func(t *testing.T) {
		err := errors.New("plain")
		assert.Same(t, err, failures.Normalize(err))
	})

	t.Run("context cancellation becomes transport error", func(t *testing.T) {
		err := failures.Normalize(context.Canceled)
		assert.ErrorIs(t, err, failures.ErrTransport)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("classified error is not rewrapped", func(t *testing.T) {
		expired := &failures.SessionExpiredError{Message: "expired"}
		assert.Same(t, error(expired), failures.Normalize(expired))
	})

	t.Run("non-error values become errors", func(t *testing.T) {
		require.EqualError(t, failures.Normalize("text"), "text")
		require.EqualError(t, failures.Normalize(42), "42")
	})
}

func TestMessageFromBody(t *testing.T) {
	cases := map[string]string{
		`{"message":"Invalid credentials"}`:                        "Invalid credentials",
		`{"error":"Rate limit exceeded"}`:                          "Rate limit exceeded",
		`{"error":{"message":"nested"}}`:                           "nested",
		`{"error":{"json":{"message":"superjson","code":-32001}}}`: "superjson",
		`{"message":"   "}`:                                        "fallback",
		`{"other":1}`:                                              "fallback",
		`not json`:                                                 "fallback",
		``:                                                         "fallback",
	}

	for body, want := range cases {
		assert.Equal(t, want, failures.MessageFromBody([]byte(body), "fallback"), body)
	}
}
