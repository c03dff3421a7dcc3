package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminconsole/internal/console/adapters/api"
	"adminconsole/internal/console/adapters/api/apitest"
	"adminconsole/internal/console/config"
	"adminconsole/internal/console/domain/failures"
	apiPorts "adminconsole/internal/console/ports/api"
	"adminconsole/internal/console/resilience"
)

func newClient(t *testing.T, baseURL string, opts ...api.Option) *api.Client {
	t.Helper()

	client, err := api.New(&config.APIConfig{BaseURL: baseURL, RPCPath: "/trpc"}, opts...)
	require.NoError(t, err)
	return client
}

func staticToken(token string) apiPorts.TokenSource {
	return apiPorts.TokenSourceFunc(func(context.Context) (string, bool) {
		return token, token != ""
	})
}

func closedServerURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := api.New(nil)
	require.ErrorIs(t, err, api.ErrNilConfig)

	_, err = api.New(&config.APIConfig{BaseURL: "not a url"})
	require.ErrorIs(t, err, config.ErrInvalidAPIURL)
}

func TestLoginSuccess(t *testing.T) {
	srv := apitest.NewServer(t)
	client := newClient(t, srv.URL)

	result, err := client.Login(context.Background(), apitest.AdminEmail, apitest.AdminPassword)
	require.NoError(t, err)

	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, apitest.Admin, result.Admin)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, api.PathLogin, reqs[0].Path)
	assert.Empty(t, reqs[0].Authorization)
	assert.JSONEq(t, `{"email":"admin@example.com","password":"AdminPassword123!"}`, reqs[0].Body)
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := apitest.NewServer(t)
	client := newClient(t, srv.URL)

	_, err := client.Login(context.Background(), apitest.AdminEmail, "wrong")
	require.Error(t, err)

	var authErr *failures.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid credentials", authErr.Message)
	assert.ErrorIs(t, err, failures.ErrAuthentication)
}

func TestLoginEmptyCredentialsSkipsNetwork(t *testing.T) {
	srv := apitest.NewServer(t)
	client := newClient(t, srv.URL)

	_, err := client.Login(context.Background(), "", apitest.AdminPassword)
	require.ErrorIs(t, err, failures.ErrAuthentication)

	_, err = client.Login(context.Background(), apitest.AdminEmail, "")
	require.ErrorIs(t, err, failures.ErrAuthentication)

	assert.Empty(t, srv.Requests())
}

func TestLoginFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<html>forbidden</html>"))
	}))
	t.Cleanup(srv.Close)
	client := newClient(t, srv.URL)

	_, err := client.Login(context.Background(), apitest.AdminEmail, apitest.AdminPassword)

	var authErr *failures.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, failures.DefaultLoginMessage, authErr.Message)
}

func TestLoginTransportError(t *testing.T) {
	client := newClient(t, closedServerURL(t))

	_, err := client.Login(context.Background(), apitest.AdminEmail, apitest.AdminPassword)
	require.ErrorIs(t, err, failures.ErrTransport)
}

func TestRefresh(t *testing.T) {
	srv := apitest.NewServer(t)
	client := newClient(t, srv.URL)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		token, err := client.Refresh(ctx, srv.IssueRefreshToken())
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.True(t, client.ValidateSession(ctx, staticToken(token)))
	})

	t.Run("rejected refresh token", func(t *testing.T) {
		_, err := client.Refresh(ctx, "old-refresh-token")

		var expired *failures.SessionExpiredError
		require.ErrorAs(t, err, &expired)
		assert.Equal(t, "Invalid refresh token", expired.Message)
	})

	t.Run("refresh token only on refresh endpoint", func(t *testing.T) {
		for _, r := range srv.Requests() {
			if r.Path != api.PathRefresh {
				assert.NotContains(t, r.Body, "refreshToken")
			}
		}
	})
}

func TestRefreshTransportError(t *testing.T) {
	client := newClient(t, closedServerURL(t))

	_, err := client.Refresh(context.Background(), "def")
	require.ErrorIs(t, err, failures.ErrTransport)
	assert.NotErrorIs(t, err, failures.ErrSessionExpired)
}

func TestValidateSession(t *testing.T) {
	srv := apitest.NewServer(t)
	client := newClient(t, srv.URL)
	ctx := context.Background()

	assert.False(t, client.ValidateSession(ctx, staticToken("")))
	assert.False(t, client.ValidateSession(ctx, nil))
	assert.Empty(t, srv.Requests(), "no token means no network call")

	token := srv.IssueAccessToken()
	assert.True(t, client.ValidateSession(ctx, staticToken(token)))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer "+token, reqs[0].Authorization)

	srv.ExpireAccessTokens()
	assert.False(t, client.ValidateSession(ctx, staticToken(token)))
}

func TestValidateSessionTransportFailure(t *testing.T) {
	client := newClient(t, closedServerURL(t))
	assert.False(t, client.ValidateSession(context.Background(), staticToken("abc")))
}

func TestLogout(t *testing.T) {
	srv := apitest.NewServer(t)
	client := newClient(t, srv.URL)
	ctx := context.Background()

	t.Run("no token", func(t *testing.T) {
		done := client.Logout(ctx, staticToken(""))
		select {
		case <-done:
		default:
			t.Fatal("logout without token must complete immediately")
		}
		assert.Zero(t, srv.Count(api.PathLogout))
	})

	t.Run("revokes token", func(t *testing.T) {
		token := srv.IssueAccessToken()
		<-client.Logout(ctx, staticToken(token))

		assert.Equal(t, 1, srv.Count(api.PathLogout))
		assert.False(t, client.ValidateSession(ctx, staticToken(token)))
	})
}

func TestLogoutSwallowsFailures(t *testing.T) {
	client := newClient(t, closedServerURL(t))

	select {
	case <-client.Logout(context.Background(), staticToken("abc")):
	case <-time.After(5 * time.Second):
		t.Fatal("logout did not complete")
	}
}

func TestLogoutSurvivesCallerCancellation(t *testing.T) {
	srv := apitest.NewServer(t)
	client := newClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	done := client.Logout(ctx, staticToken(srv.IssueAccessToken()))
	cancel()
	<-done

	assert.Equal(t, 1, srv.Count(api.PathLogout))
}

func TestCircuitBreakerOpensAfterTransportFailures(t *testing.T) {
	breaker := resilience.NewCircuitBreaker("test", resilience.CircuitBreakerConfig{
		ErrorThreshold: 1,
		Timeout:        time.Minute,
	})
	client := newClient(t, closedServerURL(t), api.WithCircuitBreaker(breaker))
	ctx := context.Background()

	_, err := client.Refresh(ctx, "def")
	require.ErrorIs(t, err, failures.ErrTransport)
	assert.Equal(t, resilience.StateOpen, breaker.GetState())

	_, err = client.Refresh(ctx, "def")
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.ErrorIs(t, err, failures.ErrTransport)
}

func TestCircuitBreakerIgnoresRejectedCredentials(t *testing.T) {
	srv := apitest.NewServer(t)
	breaker := resilience.NewCircuitBreaker("test", resilience.CircuitBreakerConfig{ErrorThreshold: 1, Timeout: time.Minute})
	client := newClient(t, srv.URL, api.WithCircuitBreaker(breaker))

	for range 3 {
		_, err := client.Login(context.Background(), apitest.AdminEmail, "wrong")
		require.ErrorIs(t, err, failures.ErrAuthentication)
	}
	assert.Equal(t, resilience.StateClosed, breaker.GetState())
}

func TestWithHTTPClient(t *testing.T) {
	var used bool
	srv := apitest.NewServer(t)
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		used = true
		return http.DefaultTransport.RoundTrip(r)
	})}
	client := newClient(t, srv.URL, api.WithHTTPClient(hc))

	assert.True(t, client.ValidateSession(context.Background(), staticToken(srv.IssueAccessToken())))
	assert.True(t, used)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestInvoke(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		value, ok := api.Invoke(ctx, func(context.Context) (int, error) { return 42, nil }, nil)
		assert.True(t, ok)
		assert.Equal(t, 42, value)
	})

	t.Run("error goes to callback", func(t *testing.T) {
		var got error
		want := &failures.RemoteError{Status: http.StatusBadRequest, Message: "bad"}
		value, ok := api.Invoke(ctx, func(context.Context) (string, error) { return "ignored", want }, func(err error) { got = err })
		assert.False(t, ok)
		assert.Empty(t, value)
		assert.Same(t, want, got)
	})

	t.Run("panic is normalized", func(t *testing.T) {
		var got error
		_, ok := api.Invoke(ctx, func(context.Context) (int, error) { panic("boom") }, func(err error) { got = err })
		assert.False(t, ok)
		require.Error(t, got)
		assert.Equal(t, "boom", got.Error())
	})

	t.Run("cancellation becomes transport error", func(t *testing.T) {
		var got error
		_, ok := api.Invoke(ctx, func(context.Context) (int, error) { return 0, context.Canceled }, func(err error) { got = err })
		assert.False(t, ok)
		assert.ErrorIs(t, got, failures.ErrTransport)
	})

	t.Run("no callback logs and suppresses", func(t *testing.T) {
		_, ok := api.Invoke(ctx, func(context.Context) (int, error) { return 0, errors.New("x") }, nil)
		assert.False(t, ok)
	})
}

func TestTransformers(t *testing.T) {
	encoded, err := api.SuperJSON{}.Serialize(map[string]int{"page": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"json":{"page":1}}`, string(encoded))

	var out map[string]int
	require.NoError(t, api.SuperJSON{}.Deserialize(json.RawMessage(`{"json":{"page":2},"meta":{}}`), &out))
	assert.Equal(t, map[string]int{"page": 2}, out)

	encoded, err = api.Plain{}.Serialize(map[string]int{"page": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"page":1}`, string(encoded))
}
